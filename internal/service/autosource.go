package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/streak"
)

// ErrUnknownAutoSource 表示 autoSource 不在固定映射表中
var ErrUnknownAutoSource = errors.New("unknown auto source")

// AutoSource 是自动习惯可引用的外部记录模块
type AutoSource string

const (
	SourceWorkouts AutoSource = "workouts"
	SourceFood     AutoSource = "food"
	SourceJournal  AutoSource = "journal"
	SourceFits     AutoSource = "fits"
	SourceVisits   AutoSource = "visits"
)

// SourceTable 描述自动来源对应的表与日期列
type SourceTable = db.SourceTable

// LookupAutoSource 返回来源映射的表
func LookupAutoSource(name string) (SourceTable, error) {
	table, ok := db.LookupSourceTable(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return SourceTable{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownAutoSource, name, strings.Join(db.SourceNames(), ", "))
	}
	return table, nil
}

// AutoSourceStore 是外部记录表的只读访问接口
type AutoSourceStore interface {
	ExistsOnDate(ctx context.Context, source AutoSource, date time.Time) (bool, error)
	ExistingDatesInRange(ctx context.Context, source AutoSource, start, end time.Time) (streak.DateSet, error)
}

// AutoSourceResolver 判断自动习惯在某天/某区间是否满足。
// 只读，无副作用；读取失败时返回空结果和错误，由调用方决定如何降级。
type AutoSourceResolver struct {
	store AutoSourceStore
}

// NewAutoSourceResolver 构造 AutoSourceResolver
func NewAutoSourceResolver(store AutoSourceStore) *AutoSourceResolver {
	return &AutoSourceResolver{store: store}
}

// IsSatisfied 当映射表中存在该日期的记录时返回 true
func (r *AutoSourceResolver) IsSatisfied(ctx context.Context, habit db.Habit, date time.Time) (bool, error) {
	source, err := autoSourceOf(habit)
	if err != nil {
		return false, err
	}

	ok, err := r.store.ExistsOnDate(ctx, source, streak.Day(date))
	if err != nil {
		return false, fmt.Errorf("check %s on %s: %w", source, streak.FormatDate(date), err)
	}
	return ok, nil
}

// SatisfiedDatesInRange 返回 [start, end] 内至少有一条记录的去重日期集合
func (r *AutoSourceResolver) SatisfiedDatesInRange(ctx context.Context, habit db.Habit, start, end time.Time) (streak.DateSet, error) {
	source, err := autoSourceOf(habit)
	if err != nil {
		return streak.NewDateSet(), err
	}
	if err := validateRange(start, end); err != nil {
		return streak.NewDateSet(), err
	}

	dates, err := r.store.ExistingDatesInRange(ctx, source, streak.Day(start), streak.Day(end))
	if err != nil {
		return streak.NewDateSet(), fmt.Errorf("list %s dates: %w", source, err)
	}
	if dates == nil {
		dates = streak.NewDateSet()
	}
	return dates, nil
}

func autoSourceOf(habit db.Habit) (AutoSource, error) {
	if !habit.IsAuto() {
		return "", fmt.Errorf("%w: habit %s is not an auto habit", ErrInvalidHabit, habit.ID)
	}
	if _, err := LookupAutoSource(habit.AutoSource); err != nil {
		return "", err
	}
	return AutoSource(strings.ToLower(strings.TrimSpace(habit.AutoSource))), nil
}
