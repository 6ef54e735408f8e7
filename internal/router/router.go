package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tracklog/internal/handler"
	"github.com/tracklog/internal/logging"
	"github.com/tracklog/internal/metrics"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, m *metrics.Metrics, logger logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if logger != nil {
		r.Use(logging.GinMiddleware(logger))
	}
	if m != nil {
		r.Use(m.Middleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// 习惯路由，静态路径优先于 :id
	habits := r.Group("/habits")
	{
		habits.GET("", api.ListHabits)
		habits.POST("", api.UpsertHabit)
		habits.GET("/today", api.TodayHabits)
		habits.GET("/stats", api.HabitStats)
		habits.GET("/completions", api.GetCompletions)
		habits.POST("/completions", api.UpsertCompletion)
		habits.GET("/:id", api.GetHabit)
		habits.POST("/:id/archive", api.ArchiveHabit)
	}

	trackers := r.Group("/trackers")
	{
		trackers.GET("/workouts/weekly-volume", api.WorkoutWeeklyVolume)
	}

	return r
}
