package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/service"
)

type completionPayload struct {
	ID        string   `json:"id"`
	HabitID   string   `json:"habitId"`
	Date      string   `json:"date"`
	Completed bool     `json:"completed"`
	Value     *float64 `json:"value"`
	CreatedAt string   `json:"createdAt"`
}

// UpsertCompletion 以 (habitId, date) 为键写入打卡记录
func (a *API) UpsertCompletion(c *gin.Context) {
	var payload completionPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	createdAt, ok := parseOptionalTimestamp(payload.CreatedAt)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的创建时间")
		return
	}

	record, err := a.completions.Upsert(c.Request.Context(), service.CompletionInput{
		ID:        payload.ID,
		HabitID:   payload.HabitID,
		Date:      payload.Date,
		Completed: payload.Completed,
		Value:     payload.Value,
		CreatedAt: createdAt,
	})
	if err != nil {
		a.handleError(c, err, "保存打卡记录失败")
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetCompletions 支持三种查询：
//   - habitId + date：单条记录，不存在时返回 null
//   - date：当天全部记录
//   - start + end（可选 habitId）：区间内记录
func (a *API) GetCompletions(c *gin.Context) {
	habitID := strings.TrimSpace(c.Query("habitId"))
	ctx := c.Request.Context()

	if c.Query("start") != "" || c.Query("end") != "" {
		start, ok := requiredQueryDate(c, "start")
		if !ok {
			return
		}
		end, ok := requiredQueryDate(c, "end")
		if !ok {
			return
		}

		records, err := a.completions.GetInRange(ctx, habitID, start, end)
		if err != nil {
			a.handleError(c, err, "获取打卡记录失败")
			return
		}
		c.JSON(http.StatusOK, nonNilCompletions(records))
		return
	}

	date, ok := requiredQueryDate(c, "date")
	if !ok {
		return
	}

	if habitID == "" {
		records, err := a.completions.GetForDate(ctx, date)
		if err != nil {
			a.handleError(c, err, "获取打卡记录失败")
			return
		}
		c.JSON(http.StatusOK, nonNilCompletions(records))
		return
	}

	record, err := a.completions.GetForHabitOnDate(ctx, habitID, date)
	if errors.Is(err, service.ErrCompletionNotFound) {
		c.JSON(http.StatusOK, nil)
		return
	}
	if err != nil {
		a.handleError(c, err, "获取打卡记录失败")
		return
	}
	c.JSON(http.StatusOK, record)
}

func nonNilCompletions(records []db.HabitCompletion) []db.HabitCompletion {
	if records == nil {
		return []db.HabitCompletion{}
	}
	return records
}
