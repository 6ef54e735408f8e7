package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracklog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%s-%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, db.Migrate(gdb), "failed to migrate test database")

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func TestHabitServiceUpsertAndListActive(t *testing.T) {
	ctx := context.Background()
	svc := NewHabitService(setupServiceTestDB(t))

	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	inputs := []HabitInput{
		{ID: "read", Name: "Read", DisplayOrder: 2, CreatedAt: timePtr(base)},
		{ID: "water", Name: "Water", ValueType: "count", Target: floatPtr(8), DisplayOrder: 1, CreatedAt: timePtr(base.Add(time.Minute))},
		{ID: "stretch", Name: "Stretch", DisplayOrder: 2, CreatedAt: timePtr(base.Add(2 * time.Minute))},
		{ID: "lift", Name: "Lift", Type: "auto", AutoSource: "workouts", ValueType: "count", DisplayOrder: 0, CreatedAt: timePtr(base.Add(3 * time.Minute))},
	}
	for _, input := range inputs {
		_, err := svc.Upsert(ctx, input)
		require.NoError(t, err, input.ID)
	}

	habits, err := svc.ListActive(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(habits))
	for _, h := range habits {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"lift", "water", "read", "stretch"}, ids)

	lift := habits[0]
	assert.Equal(t, db.HabitTypeAuto, lift.Type)
	assert.Equal(t, db.ValueTypeBoolean, lift.ValueType, "auto habits are always boolean")
	assert.Equal(t, "workouts", lift.AutoSource)
}

func TestHabitServiceUpsertUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	svc := NewHabitService(setupServiceTestDB(t))

	created, err := svc.Upsert(ctx, HabitInput{ID: "med", Name: "Meditate"})
	require.NoError(t, err)
	require.NotNil(t, created)

	updated, err := svc.Upsert(ctx, HabitInput{ID: "med", Name: "Meditate 10m", Emoji: "🧘", Frequency: "weekly", WeeklyTarget: intPtr(3)})
	require.NoError(t, err)

	assert.Equal(t, "med", updated.ID)
	assert.Equal(t, "Meditate 10m", updated.Name)
	assert.Equal(t, "🧘", updated.Emoji)
	assert.Equal(t, db.FrequencyWeekly, updated.Frequency)
	require.NotNil(t, updated.WeeklyTarget)
	assert.Equal(t, 3, *updated.WeeklyTarget)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "createdAt must not change on update")

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestHabitServiceGeneratesIDAndSanitizesName(t *testing.T) {
	ctx := context.Background()
	svc := NewHabitService(setupServiceTestDB(t))

	habit, err := svc.Upsert(ctx, HabitInput{Name: "<b>Journal</b> & reflect<script>alert(1)</script>"})
	require.NoError(t, err)
	assert.NotEmpty(t, habit.ID)
	assert.Equal(t, "Journal & reflect", habit.Name)

	_, err = svc.Upsert(ctx, HabitInput{Name: "<i></i>"})
	assert.True(t, errors.Is(err, ErrInvalidHabit))
}

func TestHabitServiceValidation(t *testing.T) {
	svc := NewHabitService(setupServiceTestDB(t))

	tests := []struct {
		name  string
		input HabitInput
	}{
		{name: "empty name", input: HabitInput{Name: "  "}},
		{name: "auto without source", input: HabitInput{Name: "Gym", Type: "auto"}},
		{name: "auto with unknown source", input: HabitInput{Name: "Gym", Type: "auto", AutoSource: "sleep"}},
		{name: "weekly without target", input: HabitInput{Name: "Run", Frequency: "weekly"}},
		{name: "weekly with zero target", input: HabitInput{Name: "Run", Frequency: "weekly", WeeklyTarget: intPtr(0)}},
		{name: "unknown frequency", input: HabitInput{Name: "Run", Frequency: "monthly"}},
		{name: "unknown type", input: HabitInput{Name: "Run", Type: "scheduled"}},
		{name: "unknown value type", input: HabitInput{Name: "Run", ValueType: "distance"}},
		{name: "non positive target", input: HabitInput{Name: "Water", ValueType: "count", Target: floatPtr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upsert(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidHabit), "unexpected error: %v", err)
		})
	}

	all, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "rejected habits must not be persisted")
}

func TestHabitServiceArchive(t *testing.T) {
	ctx := context.Background()
	gdb := setupServiceTestDB(t)
	svc := NewHabitService(gdb)
	completions := NewCompletionService(gdb)

	_, err := svc.Upsert(ctx, HabitInput{ID: "floss", Name: "Floss"})
	require.NoError(t, err)
	_, err = completions.Upsert(ctx, CompletionInput{HabitID: "floss", Date: "2024-01-01", Completed: true})
	require.NoError(t, err)

	archived, err := svc.Archive(ctx, "floss")
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// 再次保存不会取消归档
	again, err := svc.Upsert(ctx, HabitInput{ID: "floss", Name: "Floss daily"})
	require.NoError(t, err)
	assert.True(t, again.Archived)

	history, err := completions.GetInRange(ctx, "floss", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, history, 1, "archiving keeps completion history")

	_, err = svc.Archive(ctx, "missing")
	assert.True(t, errors.Is(err, ErrHabitNotFound))
}

func TestHabitServiceGetNotFound(t *testing.T) {
	svc := NewHabitService(setupServiceTestDB(t))

	_, err := svc.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrHabitNotFound))

	_, err = svc.Get(context.Background(), "")
	assert.True(t, errors.Is(err, ErrHabitNotFound))
}
