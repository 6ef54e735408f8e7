package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/logging"
	"github.com/tracklog/internal/streak"
	"gorm.io/gorm"
)

type fakeRecorder struct {
	mu       sync.Mutex
	failures map[string]int
	views    []string
}

func (r *fakeRecorder) SourceFailed(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures == nil {
		r.failures = make(map[string]int)
	}
	r.failures[source]++
}

func (r *fakeRecorder) ObserveCompose(view string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, view)
}

type failingAutoStore struct {
	err error
}

func (s failingAutoStore) ExistsOnDate(ctx context.Context, _ AutoSource, _ time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return false, s.err
}

func (s failingAutoStore) ExistingDatesInRange(ctx context.Context, _ AutoSource, _, _ time.Time) (streak.DateSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, s.err
}

type staticLister struct {
	habits []db.Habit
	err    error
}

func (l staticLister) ListActive(ctx context.Context) ([]db.Habit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.habits, l.err
}

type dashboardFixture struct {
	gdb         *gorm.DB
	habits      *HabitService
	completions *CompletionService
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	gdb := setupServiceTestDB(t)
	return &dashboardFixture{
		gdb:         gdb,
		habits:      NewHabitService(gdb),
		completions: NewCompletionService(gdb),
	}
}

func (f *dashboardFixture) habit(t *testing.T, input HabitInput) {
	t.Helper()
	_, err := f.habits.Upsert(context.Background(), input)
	require.NoError(t, err, input.ID)
}

func (f *dashboardFixture) complete(t *testing.T, habitID string, completed bool, value *float64, dates ...string) {
	t.Helper()
	for _, date := range dates {
		_, err := f.completions.Upsert(context.Background(), CompletionInput{HabitID: habitID, Date: date, Completed: completed, Value: value})
		require.NoError(t, err, "%s %s", habitID, date)
	}
}

func (f *dashboardFixture) service(store AutoSourceStore) *DashboardService {
	return NewDashboardService(f.habits, f.completions, NewAutoSourceResolver(store), logging.Discard())
}

// seedDashboard 参考日为 2024-02-06（周二）
func seedDashboard(t *testing.T, f *dashboardFixture) {
	t.Helper()
	f.habit(t, HabitInput{ID: "read", Name: "Read", DisplayOrder: 0})
	f.habit(t, HabitInput{ID: "water", Name: "Water", ValueType: "count", Target: floatPtr(8), DisplayOrder: 1})
	f.habit(t, HabitInput{ID: "lift", Name: "Lift", Type: "auto", AutoSource: "workouts", DisplayOrder: 2})
	f.habit(t, HabitInput{ID: "gym", Name: "Gym", Frequency: "weekly", WeeklyTarget: intPtr(3), DisplayOrder: 3})
	f.habit(t, HabitInput{ID: "meditate", Name: "Meditate", DisplayOrder: 4})
	f.habit(t, HabitInput{ID: "old", Name: "Old", DisplayOrder: 5})

	f.complete(t, "read", true, nil, "2024-01-20", "2024-01-21", "2024-01-22", "2024-01-23", "2024-02-04", "2024-02-05", "2024-02-06")
	f.complete(t, "water", false, floatPtr(3), "2024-02-06")
	f.complete(t, "water", false, floatPtr(0), "2024-02-05")
	f.complete(t, "gym", true, nil, "2024-02-04", "2024-02-05", "2024-02-06")
	f.complete(t, "meditate", true, floatPtr(0), "2024-02-06")
	f.complete(t, "old", true, nil, "2024-02-06")

	_, err := f.habits.Archive(context.Background(), "old")
	require.NoError(t, err)
	seedTrackers(t, f.gdb)
}

func statusByID(view *TodayView) map[string]HabitWithStatus {
	out := make(map[string]HabitWithStatus, len(view.Habits))
	for _, h := range view.Habits {
		out[h.ID] = h
	}
	return out
}

func TestDashboardToday(t *testing.T) {
	f := newDashboardFixture(t)
	seedDashboard(t, f)
	recorder := &fakeRecorder{}
	svc := f.service(NewGormTrackerStore(f.gdb)).WithRecorder(recorder)

	view, err := svc.Today(context.Background(), mustDay(t, "2024-02-06"))
	require.NoError(t, err)
	assert.Equal(t, "2024-02-06", view.Date)
	assert.Empty(t, view.DegradedSources)

	ids := make([]string, 0, len(view.Habits))
	for _, h := range view.Habits {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"read", "water", "lift", "gym", "meditate"}, ids, "archived habits are excluded")

	byID := statusByID(view)

	read := byID["read"]
	assert.True(t, read.CompletedToday)
	assert.Equal(t, 3, read.CurrentStreak)
	assert.Nil(t, read.TodayValue, "boolean habits carry no value")
	assert.Nil(t, read.CompletedThisWeek)

	water := byID["water"]
	assert.True(t, water.CompletedToday, "value > 0 implies completed")
	require.NotNil(t, water.TodayValue)
	assert.Equal(t, 3.0, *water.TodayValue)
	assert.Equal(t, 1, water.CurrentStreak, "zero value the day before breaks the streak")

	lift := byID["lift"]
	assert.True(t, lift.CompletedToday)
	assert.Equal(t, 1, lift.CurrentStreak)

	gym := byID["gym"]
	require.NotNil(t, gym.CompletedThisWeek)
	assert.Equal(t, 2, *gym.CompletedThisWeek, "sunday belongs to the previous week")
	assert.Equal(t, 3, gym.CurrentStreak)

	meditate := byID["meditate"]
	assert.True(t, meditate.CompletedToday, "explicitly completed with zero value")
	assert.Equal(t, 1, meditate.CurrentStreak)

	assert.Equal(t, []string{"today"}, recorder.views)
}

func TestDashboardTodayWithoutRecords(t *testing.T) {
	f := newDashboardFixture(t)
	f.habit(t, HabitInput{ID: "read", Name: "Read"})

	view, err := f.service(NewGormTrackerStore(f.gdb)).Today(context.Background(), mustDay(t, "2024-02-06"))
	require.NoError(t, err)
	require.Len(t, view.Habits, 1)
	assert.False(t, view.Habits[0].CompletedToday)
	assert.Zero(t, view.Habits[0].CurrentStreak)
}

func TestDashboardStats(t *testing.T) {
	f := newDashboardFixture(t)
	seedDashboard(t, f)
	svc := f.service(NewGormTrackerStore(f.gdb))
	today := mustDay(t, "2024-02-06")

	view, err := svc.Stats(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-06", view.Date)
	assert.Equal(t, streak.FormatDate(today.AddDate(0, 0, -89)), view.WindowStart)
	assert.Equal(t, 5, view.TotalHabits)
	require.Len(t, view.Habits, 5)

	stats := make(map[string]HabitStats, len(view.Habits))
	for _, h := range view.Habits {
		stats[h.Habit.ID] = h
	}

	read := stats["read"]
	assert.Equal(t, 3, read.CurrentStreak)
	assert.Equal(t, 4, read.LongestStreak)
	assert.Equal(t, 3, read.CompletedLast7Days)
	assert.Equal(t, 7, read.CompletedLast30Days)
	assert.Equal(t, 23, read.CompletionRate30)
	assert.Equal(t, []string{"2024-01-20", "2024-01-21", "2024-01-22", "2024-01-23", "2024-02-04", "2024-02-05", "2024-02-06"}, read.CompletedDates)
	assert.GreaterOrEqual(t, read.LongestStreak, read.CurrentStreak)

	lift := stats["lift"]
	assert.Equal(t, 1, lift.CurrentStreak)
	assert.Equal(t, 2, lift.LongestStreak)
	assert.Equal(t, []string{"2024-02-01", "2024-02-02", "2024-02-06"}, lift.CompletedDates)

	water := stats["water"]
	assert.Equal(t, []string{"2024-02-06"}, water.CompletedDates)

	require.Len(t, view.DailyCompletions, 90)
	assert.Equal(t, view.WindowStart, view.DailyCompletions[0].Date)
	last := view.DailyCompletions[len(view.DailyCompletions)-1]
	assert.Equal(t, streak.DailyCompletion{Date: "2024-02-06", CompletedCount: 5, TotalCount: 5, Percentage: 100}, last)

	jan21 := view.DailyCompletions[len(view.DailyCompletions)-17]
	assert.Equal(t, "2024-01-21", jan21.Date)
	assert.Equal(t, 1, jan21.CompletedCount)
	assert.Equal(t, 20, jan21.Percentage)

	require.NotEmpty(t, view.WeeklyCompletions)
	lastWeek := view.WeeklyCompletions[len(view.WeeklyCompletions)-1]
	assert.Equal(t, "2024-02-05", lastWeek.WeekStart)
	assert.Equal(t, 10, lastWeek.PossibleCount)
	assert.Equal(t, 7, lastWeek.CompletedCount)
	assert.Equal(t, 70, lastWeek.Percentage)
}

func TestDashboardStatsPartialDay(t *testing.T) {
	f := newDashboardFixture(t)
	for _, id := range []string{"a", "b", "c"} {
		f.habit(t, HabitInput{ID: id, Name: id})
	}
	f.complete(t, "a", true, nil, "2024-03-01")
	f.complete(t, "b", true, nil, "2024-03-01")

	view, err := f.service(NewGormTrackerStore(f.gdb)).WithWindowDays(30).Stats(context.Background(), mustDay(t, "2024-03-01"))
	require.NoError(t, err)
	require.Len(t, view.DailyCompletions, 30)

	last := view.DailyCompletions[29]
	assert.Equal(t, 2, last.CompletedCount)
	assert.Equal(t, 3, last.TotalCount)
	assert.Equal(t, 67, last.Percentage)
}

func TestDashboardStatsWithoutHabits(t *testing.T) {
	f := newDashboardFixture(t)

	view, err := f.service(NewGormTrackerStore(f.gdb)).Stats(context.Background(), mustDay(t, "2024-03-01"))
	require.NoError(t, err)
	assert.Zero(t, view.TotalHabits)
	assert.Empty(t, view.Habits)
	require.Len(t, view.DailyCompletions, 90)
	for _, d := range view.DailyCompletions {
		assert.Zero(t, d.Percentage)
	}
}

func TestDashboardDegradesFailingAutoSource(t *testing.T) {
	f := newDashboardFixture(t)
	f.habit(t, HabitInput{ID: "read", Name: "Read"})
	f.habit(t, HabitInput{ID: "lift", Name: "Lift", Type: "auto", AutoSource: "workouts"})
	f.habit(t, HabitInput{ID: "lift-2", Name: "Lift again", Type: "auto", AutoSource: "workouts"})
	f.complete(t, "read", true, nil, "2024-02-05", "2024-02-06")

	recorder := &fakeRecorder{}
	svc := f.service(failingAutoStore{err: errors.New("connection refused")}).WithRecorder(recorder)

	view, err := svc.Today(context.Background(), mustDay(t, "2024-02-06"))
	require.NoError(t, err, "an unavailable source must not fail the view")
	assert.Equal(t, []string{"workouts"}, view.DegradedSources)

	byID := statusByID(view)
	assert.True(t, byID["read"].CompletedToday)
	assert.Equal(t, 2, byID["read"].CurrentStreak)
	assert.False(t, byID["lift"].CompletedToday)
	assert.Zero(t, byID["lift"].CurrentStreak)
	assert.False(t, byID["lift-2"].CompletedToday)

	recorder.mu.Lock()
	assert.Equal(t, 2, recorder.failures["workouts"], "one range query and one day query per distinct source")
	recorder.mu.Unlock()

	stats, err := svc.Stats(context.Background(), mustDay(t, "2024-02-06"))
	require.NoError(t, err)
	assert.Equal(t, []string{"workouts"}, stats.DegradedSources)
	last := stats.DailyCompletions[len(stats.DailyCompletions)-1]
	assert.Equal(t, 1, last.CompletedCount)
	assert.Equal(t, 3, last.TotalCount)
	assert.Equal(t, 33, last.Percentage)
}

func TestDashboardLabelsUnconfiguredAutoSource(t *testing.T) {
	f := newDashboardFixture(t)
	lister := staticLister{habits: []db.Habit{
		{ID: "legacy", Name: "Legacy", Type: db.HabitTypeAuto, Frequency: db.FrequencyDaily},
		{ID: "lift", Name: "Lift", Type: db.HabitTypeAuto, AutoSource: "workouts", Frequency: db.FrequencyDaily, DisplayOrder: 1},
	}}
	seedTrackers(t, f.gdb)
	recorder := &fakeRecorder{}
	svc := NewDashboardService(lister, f.completions, NewAutoSourceResolver(NewGormTrackerStore(f.gdb)), logging.Discard()).WithRecorder(recorder)

	view, err := svc.Today(context.Background(), mustDay(t, "2024-02-06"))
	require.NoError(t, err)
	assert.Equal(t, []string{"unconfigured"}, view.DegradedSources)
	assert.False(t, statusByID(view)["legacy"].CompletedToday)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.NotContains(t, recorder.failures, "")
}

func TestDashboardFailsWhenHabitsUnavailable(t *testing.T) {
	f := newDashboardFixture(t)
	svc := NewDashboardService(staticLister{err: errors.New("disk I/O error")}, f.completions, NewAutoSourceResolver(NewGormTrackerStore(f.gdb)), logging.Discard())

	_, err := svc.Today(context.Background(), mustDay(t, "2024-02-06"))
	assert.Error(t, err)

	_, err = svc.Stats(context.Background(), mustDay(t, "2024-02-06"))
	assert.Error(t, err)
}

func TestDashboardAbortsOnCancellation(t *testing.T) {
	f := newDashboardFixture(t)
	lister := staticLister{habits: []db.Habit{{ID: "lift", Name: "Lift", Type: db.HabitTypeAuto, AutoSource: "workouts", Frequency: db.FrequencyDaily}}}
	svc := NewDashboardService(lister, f.completions, NewAutoSourceResolver(failingAutoStore{err: errors.New("unused")}), logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Today(ctx, mustDay(t, "2024-02-06"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
