package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tracklog/internal/streak"
)

// WorkoutService 提供训练量的周汇总，周的划分与热力图一致（周一开始）
type WorkoutService struct {
	store WorkoutVolumeStore
}

// NewWorkoutService 构造 WorkoutService
func NewWorkoutService(store WorkoutVolumeStore) *WorkoutService {
	return &WorkoutService{store: store}
}

// WeeklyVolume 返回 [start, end] 内按周汇总的训练量
func (s *WorkoutService) WeeklyVolume(ctx context.Context, start, end time.Time) ([]streak.WeeklyTotal, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	daily, err := s.store.DailyWorkoutVolume(ctx, streak.Day(start), streak.Day(end))
	if err != nil {
		return nil, fmt.Errorf("load workout volume: %w", err)
	}
	return streak.SumByWeek(daily), nil
}
