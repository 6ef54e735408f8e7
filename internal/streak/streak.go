// Package streak 提供纯函数形式的连续打卡与聚合计算。
// 所有函数只依赖调用方传入的日期，不读取系统时钟。
package streak

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"
)

// DateLayout 是全局统一的日历日期格式
const DateLayout = "2006-01-02"

// ParseDate 将 YYYY-MM-DD 解析为 UTC 零点，保证按天加减不受夏令时影响
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// Day 把任意时间截断为同一日历日的 UTC 零点，日历字段取自 t 自身的时区
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate 输出 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateSet 是某个习惯在一段区间内的完成日期集合（DerivedCompletionSet）
type DateSet map[string]struct{}

// NewDateSet 从日期列表构造集合，重复日期只计一次
func NewDateSet(dates ...time.Time) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		set.Add(d)
	}
	return set
}

// Add 加入一天
func (s DateSet) Add(d time.Time) {
	s[FormatDate(Day(d))] = struct{}{}
}

// AddString 加入 YYYY-MM-DD 形式的日期，无法解析的值会被忽略
func (s DateSet) AddString(value string) {
	if len(value) > len(DateLayout) {
		value = value[:len(DateLayout)]
	}
	d, err := ParseDate(value)
	if err != nil {
		return
	}
	s.Add(d)
}

// Has 判断某天是否完成
func (s DateSet) Has(d time.Time) bool {
	_, ok := s[FormatDate(Day(d))]
	return ok
}

// Dates 返回升序排列的日期
func (s DateSet) Dates() []time.Time {
	dates := make([]time.Time, 0, len(s))
	for key := range s {
		d, err := ParseDate(key)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return dates
}

// Strings 返回升序排列的 YYYY-MM-DD 列表
func (s DateSet) Strings() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// CountBetween 统计 [start, end] 闭区间内完成的天数
func (s DateSet) CountBetween(start, end time.Time) int {
	start, end = Day(start), Day(end)
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if s.Has(d) {
			count++
		}
	}
	return count
}

// CurrentStreak 从 from 开始逐日向前回溯，遇到第一个缺口即停止。
// from 当天未完成时返回 0。
func CurrentStreak(completed DateSet, from time.Time) int {
	streak := 0
	for d := Day(from); completed.Has(d); d = d.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// LongestStreak 对全部完成日期升序扫描一次，返回历史最长连续天数
func LongestStreak(dates []time.Time) int {
	if len(dates) == 0 {
		return 0
	}

	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, Day(d))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	days = slices.CompactFunc(days, func(a, b time.Time) bool { return a.Equal(b) })

	longest, current := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i-1].AddDate(0, 0, 1).Equal(days[i]) {
			current++
			if current > longest {
				longest = current
			}
			continue
		}
		current = 1
	}

	return longest
}

// Percentage 计算热力图单日完成百分比，total 为 0 时返回 0
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// WeekStart 返回日期所在周的周一，周一为一周的第一天
func WeekStart(d time.Time) time.Time {
	day := Day(d)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -weekday+1)
}

// DailyCompletion 是热力图中的单日数据
type DailyCompletion struct {
	Date           string `json:"date"`
	CompletedCount int    `json:"completedCount"`
	TotalCount     int    `json:"totalCount"`
	Percentage     int    `json:"percentage"`
}

// WeeklyCompletion 按周一分桶汇总的完成数据
type WeeklyCompletion struct {
	WeekStart      string `json:"weekStart"`
	CompletedCount int    `json:"completedCount"`
	PossibleCount  int    `json:"possibleCount"`
	Percentage     int    `json:"percentage"`
}

// Heatmap 针对 [start, end] 每一天统计所有活跃习惯的完成情况
func Heatmap(sets []DateSet, start, end time.Time) []DailyCompletion {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return []DailyCompletion{}
	}

	total := len(sets)
	days := make([]DailyCompletion, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		done := 0
		for _, set := range sets {
			if set.Has(d) {
				done++
			}
		}
		days = append(days, DailyCompletion{
			Date:           FormatDate(d),
			CompletedCount: done,
			TotalCount:     total,
			Percentage:     Percentage(done, total),
		})
	}
	return days
}

// WeeklyRollup 将每日数据按 WeekStart 分组，输出按周升序的序列
func WeeklyRollup(days []DailyCompletion) []WeeklyCompletion {
	weeks := make([]WeeklyCompletion, 0, len(days)/7+1)
	index := make(map[string]int)

	for _, day := range days {
		d, err := ParseDate(day.Date)
		if err != nil {
			continue
		}
		key := FormatDate(WeekStart(d))
		i, ok := index[key]
		if !ok {
			i = len(weeks)
			index[key] = i
			weeks = append(weeks, WeeklyCompletion{WeekStart: key})
		}
		weeks[i].CompletedCount += day.CompletedCount
		weeks[i].PossibleCount += day.TotalCount
	}

	for i := range weeks {
		weeks[i].Percentage = Percentage(weeks[i].CompletedCount, weeks[i].PossibleCount)
	}
	slices.SortFunc(weeks, func(a, b WeeklyCompletion) int {
		return cmp.Compare(a.WeekStart, b.WeekStart)
	})
	return weeks
}

// WeeklyTotal 是按周汇总的数值（例如训练量）
type WeeklyTotal struct {
	WeekStart string  `json:"weekStart"`
	Total     float64 `json:"total"`
	Days      int     `json:"days"`
}

// SumByWeek 将按日的数值按周一分桶求和，Days 统计有数据的天数
func SumByWeek(daily map[string]float64) []WeeklyTotal {
	buckets := make(map[string]*WeeklyTotal)
	for date, value := range daily {
		d, err := ParseDate(date)
		if err != nil {
			continue
		}
		key := FormatDate(WeekStart(d))
		bucket, ok := buckets[key]
		if !ok {
			bucket = &WeeklyTotal{WeekStart: key}
			buckets[key] = bucket
		}
		bucket.Total += value
		bucket.Days++
	}

	totals := make([]WeeklyTotal, 0, len(buckets))
	for _, bucket := range buckets {
		totals = append(totals, *bucket)
	}
	slices.SortFunc(totals, func(a, b WeeklyTotal) int {
		return cmp.Compare(a.WeekStart, b.WeekStart)
	})
	return totals
}
