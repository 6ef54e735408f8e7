package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/streak"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrCompletionNotFound 在指定习惯当天没有记录时返回
	ErrCompletionNotFound = errors.New("completion not found")
	// ErrInvalidCompletion 当打卡数据不合法时返回
	ErrInvalidCompletion = db.ErrInvalidCompletion
)

// CompletionService 负责手动习惯的单日完成记录
type CompletionService struct {
	db *gorm.DB
}

// CompletionInput 定义打卡时的输入对象
type CompletionInput struct {
	ID        string
	HabitID   string
	Date      string
	Completed bool
	Value     *float64
	CreatedAt *time.Time
}

// NewCompletionService 构造 CompletionService
func NewCompletionService(gdb *gorm.DB) *CompletionService {
	return &CompletionService{db: gdb}
}

// Upsert 以 (habit_id, date) 为键幂等写入：存在则原地更新，否则创建。
// completed 在写入前按统一规则归一化，value > 0 即视为完成。
func (s *CompletionService) Upsert(ctx context.Context, input CompletionInput) (*db.HabitCompletion, error) {
	habitID := strings.TrimSpace(input.HabitID)
	if habitID == "" {
		return nil, fmt.Errorf("%w: habit id is required", ErrInvalidCompletion)
	}
	day, err := ParseDay(input.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCompletion, err)
	}
	if input.Value != nil && *input.Value < 0 {
		return nil, fmt.Errorf("%w: value must not be negative", ErrInvalidCompletion)
	}

	var habit db.Habit
	if err := s.db.WithContext(ctx).Where("id = ?", habitID).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}
	if habit.IsAuto() {
		return nil, fmt.Errorf("%w: auto habits are completed by their source", ErrInvalidCompletion)
	}

	record := db.HabitCompletion{
		ID:        strings.TrimSpace(input.ID),
		HabitID:   habitID,
		Date:      streak.FormatDate(day),
		Completed: db.EffectivelyComplete(input.Completed, input.Value),
		Value:     input.Value,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	} else if err := s.checkIDOwner(ctx, record); err != nil {
		return nil, err
	}
	if input.CreatedAt != nil {
		record.CreatedAt = *input.CreatedAt
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "value", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert habit completion: %w", err)
	}

	return s.GetForHabitOnDate(ctx, habitID, day)
}

// checkIDOwner 确保客户端 id 没有被其它 (habit_id, date) 占用
func (s *CompletionService) checkIDOwner(ctx context.Context, record db.HabitCompletion) error {
	var existing db.HabitCompletion
	err := s.db.WithContext(ctx).Where("id = ?", record.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find habit completion: %w", err)
	}
	if existing.HabitID != record.HabitID || existing.Date != record.Date {
		return fmt.Errorf("%w: id %s already belongs to %s on %s", ErrInvalidCompletion, record.ID, existing.HabitID, existing.Date)
	}
	return nil
}

// GetForHabitOnDate 返回某习惯某天的记录，不存在时返回 ErrCompletionNotFound
func (s *CompletionService) GetForHabitOnDate(ctx context.Context, habitID string, date time.Time) (*db.HabitCompletion, error) {
	var record db.HabitCompletion
	if err := s.db.WithContext(ctx).
		Where("habit_id = ? AND date = ?", strings.TrimSpace(habitID), streak.FormatDate(date)).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompletionNotFound
		}
		return nil, fmt.Errorf("get habit completion: %w", err)
	}
	return &record, nil
}

// GetForDate 返回所有习惯在某天的记录
func (s *CompletionService) GetForDate(ctx context.Context, date time.Time) ([]db.HabitCompletion, error) {
	var records []db.HabitCompletion
	if err := s.db.WithContext(ctx).
		Where("date = ?", streak.FormatDate(date)).
		Order("habit_id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list completions for date: %w", err)
	}
	return records, nil
}

// GetInRange 返回 [start, end] 内的记录，habitID 为空时返回全部习惯
func (s *CompletionService) GetInRange(ctx context.Context, habitID string, start, end time.Time) ([]db.HabitCompletion, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", streak.FormatDate(start), streak.FormatDate(end))
	if id := strings.TrimSpace(habitID); id != "" {
		query = query.Where("habit_id = ?", id)
	}

	var records []db.HabitCompletion
	if err := query.Order("date ASC").Order("habit_id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list completions in range: %w", err)
	}
	return records, nil
}
