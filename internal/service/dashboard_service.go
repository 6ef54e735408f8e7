package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/streak"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWindowDays = 90
	manualSourceName  = "manual"
	unsetSourceName   = "unconfigured"
)

// sourceKey 返回自动习惯的数据源标签，未配置时归入 unconfigured
func sourceKey(habit db.Habit) AutoSource {
	key := strings.ToLower(strings.TrimSpace(habit.AutoSource))
	if key == "" {
		return unsetSourceName
	}
	return AutoSource(key)
}

// HabitLister 提供活跃习惯列表
type HabitLister interface {
	ListActive(ctx context.Context) ([]db.Habit, error)
}

// CompletionReader 提供打卡记录的读取
type CompletionReader interface {
	GetForDate(ctx context.Context, date time.Time) ([]db.HabitCompletion, error)
	GetInRange(ctx context.Context, habitID string, start, end time.Time) ([]db.HabitCompletion, error)
}

// Recorder 接收降级与耗时指标
type Recorder interface {
	SourceFailed(source string)
	ObserveCompose(view string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) SourceFailed(string)                  {}
func (noopRecorder) ObserveCompose(string, time.Duration) {}

// DashboardService 组装今日视图与统计视图。
// 每次请求都重新读取并计算，不缓存任何派生数据。
type DashboardService struct {
	habits      HabitLister
	completions CompletionReader
	resolver    *AutoSourceResolver
	logger      logrus.FieldLogger
	recorder    Recorder
	windowDays  int
}

// HabitWithStatus 是今日视图中单个习惯的状态
type HabitWithStatus struct {
	db.Habit
	CompletedToday    bool     `json:"completedToday"`
	TodayValue        *float64 `json:"todayValue,omitempty"`
	CurrentStreak     int      `json:"currentStreak"`
	CompletedThisWeek *int     `json:"completedThisWeek,omitempty"`
}

// TodayView 是 GET /habits/today 的响应
type TodayView struct {
	Date            string            `json:"date"`
	Habits          []HabitWithStatus `json:"habits"`
	DegradedSources []string          `json:"degradedSources,omitempty"`
}

// HabitStats 汇总单个习惯在统计窗口内的数据
type HabitStats struct {
	Habit               db.Habit `json:"habit"`
	CurrentStreak       int      `json:"currentStreak"`
	LongestStreak       int      `json:"longestStreak"`
	CompletedLast7Days  int      `json:"completedLast7Days"`
	CompletedLast30Days int      `json:"completedLast30Days"`
	CompletionRate30    int      `json:"completionRate30"`
	CompletedDates      []string `json:"completedDates"`
}

// StatsView 是 GET /habits/stats 的响应
type StatsView struct {
	Date              string                    `json:"date"`
	WindowStart       string                    `json:"windowStart"`
	Habits            []HabitStats              `json:"habits"`
	DailyCompletions  []streak.DailyCompletion  `json:"dailyCompletions"`
	WeeklyCompletions []streak.WeeklyCompletion `json:"weeklyCompletions"`
	TotalHabits       int                       `json:"totalHabits"`
	DegradedSources   []string                  `json:"degradedSources,omitempty"`
}

// snapshot 是一次请求内预取并按习惯拆分好的数据
type snapshot struct {
	day      time.Time
	start    time.Time
	habits   []db.Habit
	sources  []HabitSource
	degraded []string
}

// NewDashboardService 构造 DashboardService，默认统计窗口为 90 天
func NewDashboardService(habits HabitLister, completions CompletionReader, resolver *AutoSourceResolver, logger logrus.FieldLogger) *DashboardService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DashboardService{
		habits:      habits,
		completions: completions,
		resolver:    resolver,
		logger:      logger,
		recorder:    noopRecorder{},
		windowDays:  defaultWindowDays,
	}
}

// WithRecorder 设置指标接收者
func (s *DashboardService) WithRecorder(r Recorder) *DashboardService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithWindowDays 调整统计窗口，小于 30 天的值会被忽略
func (s *DashboardService) WithWindowDays(days int) *DashboardService {
	if days >= 30 {
		s.windowDays = days
	}
	return s
}

// Today 返回 day 当天每个活跃习惯的完成状态与当前连续天数
func (s *DashboardService) Today(ctx context.Context, day time.Time) (*TodayView, error) {
	started := time.Now()
	defer func() { s.recorder.ObserveCompose("today", time.Since(started)) }()

	snap, err := s.compose(ctx, day)
	if err != nil {
		return nil, err
	}

	view := &TodayView{
		Date:            streak.FormatDate(snap.day),
		Habits:          make([]HabitWithStatus, 0, len(snap.habits)),
		DegradedSources: snap.degraded,
	}

	for i, habit := range snap.habits {
		source := snap.sources[i]
		completed, set := completedSet(source, snap)

		status := HabitWithStatus{
			Habit:          habit,
			CompletedToday: completed,
			CurrentStreak:  streak.CurrentStreak(set, snap.day),
		}
		if manual, ok := source.(ManualHabitSource); ok && habit.TracksValue() {
			status.TodayValue = manual.Value(snap.day)
		}
		if habit.Frequency == db.FrequencyWeekly {
			count := set.CountBetween(streak.WeekStart(snap.day), snap.day)
			status.CompletedThisWeek = &count
		}
		view.Habits = append(view.Habits, status)
	}

	return view, nil
}

// Stats 返回统计窗口内每个习惯的连续天数、7/30 天完成数以及热力图序列
func (s *DashboardService) Stats(ctx context.Context, day time.Time) (*StatsView, error) {
	started := time.Now()
	defer func() { s.recorder.ObserveCompose("stats", time.Since(started)) }()

	snap, err := s.compose(ctx, day)
	if err != nil {
		return nil, err
	}

	view := &StatsView{
		Date:            streak.FormatDate(snap.day),
		WindowStart:     streak.FormatDate(snap.start),
		Habits:          make([]HabitStats, 0, len(snap.habits)),
		TotalHabits:     len(snap.habits),
		DegradedSources: snap.degraded,
	}

	sets := make([]streak.DateSet, 0, len(snap.habits))
	for i, habit := range snap.habits {
		_, set := completedSet(snap.sources[i], snap)
		sets = append(sets, set)

		last30 := set.CountBetween(snap.day.AddDate(0, 0, -29), snap.day)
		view.Habits = append(view.Habits, HabitStats{
			Habit:               habit,
			CurrentStreak:       streak.CurrentStreak(set, snap.day),
			LongestStreak:       streak.LongestStreak(set.Dates()),
			CompletedLast7Days:  set.CountBetween(snap.day.AddDate(0, 0, -6), snap.day),
			CompletedLast30Days: last30,
			CompletionRate30:    streak.Percentage(last30, 30),
			CompletedDates:      set.Strings(),
		})
	}

	view.DailyCompletions = streak.Heatmap(sets, snap.start, snap.day)
	view.WeeklyCompletions = streak.WeeklyRollup(view.DailyCompletions)
	return view, nil
}

// completedSet 返回参考日是否完成以及窗口内的完成集合（参考日完成时一定包含在内）
func completedSet(source HabitSource, snap *snapshot) (bool, streak.DateSet) {
	completed := source.IsSatisfied(snap.day)
	set := source.SatisfiedDatesInRange(snap.start, snap.day)
	if completed {
		set.Add(snap.day)
	}
	return completed, set
}

// compose 加载活跃习惯，然后并发拉取手动打卡与每个不同的自动来源。
// 来源读取失败只影响对应习惯（视为未完成），习惯列表读取失败则整体失败。
func (s *DashboardService) compose(ctx context.Context, day time.Time) (*snapshot, error) {
	day = streak.Day(day)
	habits, err := s.habits.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active habits: %w", err)
	}

	snap := &snapshot{
		day:     day,
		start:   day.AddDate(0, 0, -(s.windowDays - 1)),
		habits:  habits,
		sources: make([]HabitSource, len(habits)),
	}

	representatives := make(map[AutoSource]db.Habit)
	hasManual := false
	for _, habit := range habits {
		if !habit.IsAuto() {
			hasManual = true
			continue
		}
		key := sourceKey(habit)
		if _, ok := representatives[key]; !ok {
			representatives[key] = habit
		}
	}

	var (
		mu        sync.Mutex
		rows      []db.HabitCompletion
		dayRows   []db.HabitCompletion
		autoDates = make(map[AutoSource]streak.DateSet)
		autoDay   = make(map[AutoSource]*bool)
		failed    = make(map[string]struct{})
	)

	fail := func(source string, err error) error {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		mu.Lock()
		failed[source] = struct{}{}
		mu.Unlock()
		s.recorder.SourceFailed(source)
		s.logger.WithFields(logrus.Fields{
			"source": source,
			"date":   streak.FormatDate(day),
			"error":  err.Error(),
		}).Warn("habit source unavailable, treating as not completed")
		return nil
	}

	var g errgroup.Group
	if hasManual {
		g.Go(func() error {
			result, err := s.completions.GetInRange(ctx, "", snap.start, day)
			if err != nil {
				return fail(manualSourceName, err)
			}
			mu.Lock()
			rows = result
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			result, err := s.completions.GetForDate(ctx, day)
			if err != nil {
				return fail(manualSourceName, err)
			}
			mu.Lock()
			dayRows = result
			mu.Unlock()
			return nil
		})
	}
	for source, habit := range representatives {
		g.Go(func() error {
			dates, err := s.resolver.SatisfiedDatesInRange(ctx, habit, snap.start, day)
			if err != nil {
				return fail(string(source), err)
			}
			mu.Lock()
			autoDates[source] = dates
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			ok, err := s.resolver.IsSatisfied(ctx, habit, day)
			if err != nil {
				return fail(string(source), err)
			}
			mu.Lock()
			autoDay[source] = &ok
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compose habits: %w", err)
	}

	byHabit := make(map[string][]db.HabitCompletion)
	for _, row := range rows {
		byHabit[row.HabitID] = append(byHabit[row.HabitID], row)
	}
	dayByHabit := make(map[string]*db.HabitCompletion, len(dayRows))
	for i := range dayRows {
		dayByHabit[dayRows[i].HabitID] = &dayRows[i]
	}

	for i, habit := range habits {
		if habit.IsAuto() {
			key := sourceKey(habit)
			snap.sources[i] = NewAutoHabitSource(autoDates[key], day, autoDay[key])
			continue
		}
		snap.sources[i] = NewManualHabitSource(byHabit[habit.ID], dayByHabit[habit.ID])
	}

	for source := range failed {
		snap.degraded = append(snap.degraded, source)
	}
	slices.Sort(snap.degraded)

	return snap, nil
}
