package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tracklog/internal/streak"
)

// WorkoutWeeklyVolume 返回 [start, end] 内按周（周一开始）汇总的训练量
func (a *API) WorkoutWeeklyVolume(c *gin.Context) {
	start, ok := requiredQueryDate(c, "start")
	if !ok {
		return
	}
	end, ok := requiredQueryDate(c, "end")
	if !ok {
		return
	}

	weeks, err := a.workouts.WeeklyVolume(c.Request.Context(), start, end)
	if err != nil {
		a.handleError(c, err, "获取训练量失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"start": streak.FormatDate(start),
		"end":   streak.FormatDate(end),
		"weeks": weeks,
	})
}
