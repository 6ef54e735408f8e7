package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/service"
)

type habitPayload struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Emoji        string   `json:"emoji"`
	Type         string   `json:"type"`
	ValueType    string   `json:"valueType"`
	Target       *float64 `json:"target"`
	Frequency    string   `json:"frequency"`
	WeeklyTarget *int     `json:"weeklyTarget"`
	AutoSource   string   `json:"autoSource"`
	DisplayOrder int      `json:"displayOrder"`
	CreatedAt    string   `json:"createdAt"`
}

// ListHabits 返回习惯列表 JSON，active=true 时只返回未归档的习惯
func (a *API) ListHabits(c *gin.Context) {
	var (
		habits []db.Habit
		err    error
	)
	if strings.EqualFold(c.Query("active"), "true") {
		habits, err = a.habits.ListActive(c.Request.Context())
	} else {
		habits, err = a.habits.ListAll(c.Request.Context())
	}
	if err != nil {
		a.handleError(c, err, "获取习惯列表失败")
		return
	}
	if habits == nil {
		habits = []db.Habit{}
	}

	c.JSON(http.StatusOK, habits)
}

// GetHabit 返回单个习惯详情
func (a *API) GetHabit(c *gin.Context) {
	habit, err := a.habits.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.handleError(c, err, "加载习惯失败")
		return
	}

	c.JSON(http.StatusOK, habit)
}

// UpsertHabit 创建或更新习惯，id 缺省时由服务端生成
func (a *API) UpsertHabit(c *gin.Context) {
	var payload habitPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	createdAt, ok := parseOptionalTimestamp(payload.CreatedAt)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的创建时间")
		return
	}

	habit, err := a.habits.Upsert(c.Request.Context(), service.HabitInput{
		ID:           payload.ID,
		Name:         payload.Name,
		Emoji:        payload.Emoji,
		Type:         payload.Type,
		ValueType:    payload.ValueType,
		Target:       payload.Target,
		Frequency:    payload.Frequency,
		WeeklyTarget: payload.WeeklyTarget,
		AutoSource:   payload.AutoSource,
		DisplayOrder: payload.DisplayOrder,
		CreatedAt:    createdAt,
	})
	if err != nil {
		a.handleError(c, err, "保存习惯失败")
		return
	}

	c.JSON(http.StatusOK, habit)
}

// ArchiveHabit 归档习惯，历史打卡保留
func (a *API) ArchiveHabit(c *gin.Context) {
	habit, err := a.habits.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.handleError(c, err, "归档习惯失败")
		return
	}

	c.JSON(http.StatusOK, habit)
}

// TodayHabits 返回参考日每个活跃习惯的完成状态，date 缺省为服务器时区的今天
func (a *API) TodayHabits(c *gin.Context) {
	day, ok := queryDate(c, "date", a.today())
	if !ok {
		return
	}

	view, err := a.dashboard.Today(c.Request.Context(), day)
	if err != nil {
		a.handleError(c, err, "获取今日习惯失败")
		return
	}

	c.JSON(http.StatusOK, view)
}

// HabitStats 返回统计窗口内的连续天数与热力图
func (a *API) HabitStats(c *gin.Context) {
	day, ok := queryDate(c, "date", a.today())
	if !ok {
		return
	}

	view, err := a.dashboard.Stats(c.Request.Context(), day)
	if err != nil {
		a.handleError(c, err, "计算习惯统计失败")
		return
	}

	c.JSON(http.StatusOK, view)
}
