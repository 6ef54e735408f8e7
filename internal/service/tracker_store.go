package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tracklog/internal/streak"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkoutVolumeStore 读取训练量
type WorkoutVolumeStore interface {
	DailyWorkoutVolume(ctx context.Context, start, end time.Time) (map[string]float64, error)
}

// TrackerStore 同时提供自动来源判断与训练量读取，sqlite 与 supabase 两种后端都实现它
type TrackerStore interface {
	AutoSourceStore
	WorkoutVolumeStore
}

// GormTrackerStore 通过 gorm 读取本地数据库中的记录表
type GormTrackerStore struct {
	db *gorm.DB
}

// NewGormTrackerStore 构造 GormTrackerStore
func NewGormTrackerStore(gdb *gorm.DB) *GormTrackerStore {
	return &GormTrackerStore{db: gdb}
}

// ExistsOnDate 实现 AutoSourceStore
func (s *GormTrackerStore) ExistsOnDate(ctx context.Context, source AutoSource, date time.Time) (bool, error) {
	table, err := LookupAutoSource(string(source))
	if err != nil {
		return false, err
	}

	var dates []string
	if err := s.db.WithContext(ctx).Table(table.Table).
		Where(clause.Eq{Column: clause.Column{Name: table.DateColumn}, Value: streak.FormatDate(date)}).
		Limit(1).
		Pluck(table.DateColumn, &dates).Error; err != nil {
		return false, fmt.Errorf("query %s: %w", table.Table, err)
	}
	return len(dates) > 0, nil
}

// ExistingDatesInRange 实现 AutoSourceStore，同一天多条记录只计一次
func (s *GormTrackerStore) ExistingDatesInRange(ctx context.Context, source AutoSource, start, end time.Time) (streak.DateSet, error) {
	table, err := LookupAutoSource(string(source))
	if err != nil {
		return nil, err
	}

	var dates []string
	if err := s.db.WithContext(ctx).Table(table.Table).
		Where(clause.Gte{Column: clause.Column{Name: table.DateColumn}, Value: streak.FormatDate(start)}).
		Where(clause.Lte{Column: clause.Column{Name: table.DateColumn}, Value: streak.FormatDate(end)}).
		Distinct().
		Pluck(table.DateColumn, &dates).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", table.Table, err)
	}

	set := streak.NewDateSet()
	for _, d := range dates {
		set.AddString(d)
	}
	return set, nil
}

// DailyWorkoutVolume 按日汇总训练量
func (s *GormTrackerStore) DailyWorkoutVolume(ctx context.Context, start, end time.Time) (map[string]float64, error) {
	var rows []struct {
		LogDate string
		Volume  float64
	}
	if err := s.db.WithContext(ctx).Table("workouts").
		Select("log_date, COALESCE(SUM(volume), 0) AS volume").
		Where("log_date BETWEEN ? AND ?", streak.FormatDate(start), streak.FormatDate(end)).
		Group("log_date").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("sum workout volume: %w", err)
	}

	daily := make(map[string]float64, len(rows))
	for _, row := range rows {
		daily[row.LogDate] += row.Volume
	}
	return daily, nil
}
