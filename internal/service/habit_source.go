package service

import (
	"time"

	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/streak"
)

// HabitSource 回答“这个习惯在某天/某区间是否完成”。
// 组装视图时按习惯类型选一次实现，聚合代码不再区分 manual/auto。
type HabitSource interface {
	IsSatisfied(date time.Time) bool
	SatisfiedDatesInRange(start, end time.Time) streak.DateSet
}

// ManualHabitSource 读取打卡记录并套用统一的完成规则
type ManualHabitSource struct {
	rows   []db.HabitCompletion
	dayRow *db.HabitCompletion
}

// NewManualHabitSource 使用区间内的记录与参考日当天的记录构造
func NewManualHabitSource(rows []db.HabitCompletion, dayRow *db.HabitCompletion) ManualHabitSource {
	return ManualHabitSource{rows: rows, dayRow: dayRow}
}

// IsSatisfied 实现 HabitSource
func (m ManualHabitSource) IsSatisfied(date time.Time) bool {
	key := streak.FormatDate(date)
	if m.dayRow != nil && m.dayRow.Date == key {
		return m.dayRow.IsEffectivelyComplete()
	}
	for _, row := range m.rows {
		if row.Date == key {
			return row.IsEffectivelyComplete()
		}
	}
	return false
}

// SatisfiedDatesInRange 实现 HabitSource
func (m ManualHabitSource) SatisfiedDatesInRange(start, end time.Time) streak.DateSet {
	from, to := streak.FormatDate(start), streak.FormatDate(end)
	set := streak.NewDateSet()
	for _, row := range m.rows {
		if row.Date < from || row.Date > to || !row.IsEffectivelyComplete() {
			continue
		}
		set.AddString(row.Date)
	}
	if m.dayRow != nil && m.dayRow.Date >= from && m.dayRow.Date <= to && m.dayRow.IsEffectivelyComplete() {
		set.AddString(m.dayRow.Date)
	}
	return set
}

// Value 返回某天记录的数值
func (m ManualHabitSource) Value(date time.Time) *float64 {
	key := streak.FormatDate(date)
	if m.dayRow != nil && m.dayRow.Date == key {
		return m.dayRow.Value
	}
	for _, row := range m.rows {
		if row.Date == key {
			return row.Value
		}
	}
	return nil
}

// AutoHabitSource 读取外部记录表中存在记录的日期
type AutoHabitSource struct {
	dates    streak.DateSet
	day      time.Time
	dayKnown bool
	dayValue bool
}

// NewAutoHabitSource 使用区间日期集合构造；satisfiedOnDay 为参考日的单独查询结果，nil 表示未查询或查询失败
func NewAutoHabitSource(dates streak.DateSet, day time.Time, satisfiedOnDay *bool) AutoHabitSource {
	if dates == nil {
		dates = streak.NewDateSet()
	}
	source := AutoHabitSource{dates: dates, day: streak.Day(day)}
	if satisfiedOnDay != nil {
		source.dayKnown = true
		source.dayValue = *satisfiedOnDay
	}
	return source
}

// IsSatisfied 实现 HabitSource
func (a AutoHabitSource) IsSatisfied(date time.Time) bool {
	if a.dayKnown && streak.Day(date).Equal(a.day) {
		return a.dayValue
	}
	return a.dates.Has(date)
}

// SatisfiedDatesInRange 实现 HabitSource
func (a AutoHabitSource) SatisfiedDatesInRange(start, end time.Time) streak.DateSet {
	from, to := streak.Day(start), streak.Day(end)
	set := streak.NewDateSet()
	for _, d := range a.dates.Dates() {
		if d.Before(from) || d.After(to) {
			continue
		}
		set.Add(d)
	}
	if a.dayKnown && !a.day.Before(from) && !a.day.After(to) {
		if a.dayValue {
			set.Add(a.day)
		} else {
			delete(set, streak.FormatDate(a.day))
		}
	}
	return set
}
