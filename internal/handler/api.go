package handler

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tracklog/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	habits      *service.HabitService
	completions *service.CompletionService
	dashboard   *service.DashboardService
	workouts    *service.WorkoutService
	logger      logrus.FieldLogger
	location    *time.Location
	now         func() time.Time
}

// Options 控制 API 的可选依赖
type Options struct {
	Logger     logrus.FieldLogger
	Recorder   service.Recorder
	Location   *time.Location
	WindowDays int
}

// NewAPI constructs a handler set with shared services.
// trackers 决定自动来源与训练量从本地数据库还是 Supabase 读取。
func NewAPI(gdb *gorm.DB, trackers service.TrackerStore, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	location := opts.Location
	if location == nil {
		location = time.Local
	}

	habits := service.NewHabitService(gdb)
	completions := service.NewCompletionService(gdb)
	dashboard := service.NewDashboardService(habits, completions, service.NewAutoSourceResolver(trackers), logger).
		WithRecorder(opts.Recorder).
		WithWindowDays(opts.WindowDays)

	return &API{
		habits:      habits,
		completions: completions,
		dashboard:   dashboard,
		workouts:    service.NewWorkoutService(trackers),
		logger:      logger,
		location:    location,
		now:         time.Now,
	}
}

// WithClock 替换“今天”的来源，测试中使用
func (a *API) WithClock(now func() time.Time) *API {
	if now != nil {
		a.now = now
	}
	return a
}

func (a *API) today() time.Time {
	return service.Today(a.now(), a.location)
}
