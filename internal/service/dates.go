package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tracklog/internal/streak"
)

// ErrInvalidDate 在日期参数无法解析或区间非法时返回
var ErrInvalidDate = errors.New("invalid date")

// ParseDay 解析 YYYY-MM-DD，不做任何时区换算
func ParseDay(value string) (time.Time, error) {
	d, err := streak.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return d, nil
}

// Today 返回 now 在 loc 时区下的日历日期
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return streak.Day(now.In(loc))
}

func validateRange(start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidDate, streak.FormatDate(end), streak.FormatDate(start))
	}
	return nil
}
