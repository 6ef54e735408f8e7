package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tracklog/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// queryDate 解析可选的 YYYY-MM-DD 查询参数，缺省时返回 fallback
func queryDate(c *gin.Context, key string, fallback time.Time) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, true
	}
	d, err := service.ParseDay(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的日期")
		return time.Time{}, false
	}
	return d, true
}

// requiredQueryDate 解析必填日期参数
func requiredQueryDate(c *gin.Context, key string) (time.Time, bool) {
	if strings.TrimSpace(c.Query(key)) == "" {
		respondError(c, http.StatusBadRequest, "缺少日期参数: "+key)
		return time.Time{}, false
	}
	return queryDate(c, key, time.Time{})
}

func parseOptionalTimestamp(value string) (*time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, true
	}
	if t, err := service.ParseDay(value); err == nil {
		return &t, true
	}
	return nil, false
}

// handleError 将服务层错误映射为 HTTP 状态码
func (a *API) handleError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "习惯不存在")
	case errors.Is(err, service.ErrCompletionNotFound):
		respondError(c, http.StatusNotFound, "打卡记录不存在")
	case errors.Is(err, service.ErrUnknownAutoSource):
		respondError(c, http.StatusBadRequest, "未知的自动来源")
	case errors.Is(err, service.ErrInvalidHabit):
		respondError(c, http.StatusBadRequest, "习惯配置无效: "+err.Error())
	case errors.Is(err, service.ErrInvalidCompletion):
		respondError(c, http.StatusBadRequest, "打卡数据不合法: "+err.Error())
	case errors.Is(err, service.ErrInvalidDate):
		respondError(c, http.StatusBadRequest, "无效的日期")
	default:
		_ = c.Error(err)
		a.logger.WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Error(fallback)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}
