package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tracklog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrHabitNotFound 在指定习惯不存在时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrInvalidHabit 当习惯定义不满足约束时返回
	ErrInvalidHabit = db.ErrInvalidHabit
)

// habitUpdateColumns 是 upsert 冲突时允许覆盖的列；archived 只能通过 Archive 修改
var habitUpdateColumns = []string{
	"name", "emoji", "type", "value_type", "target", "frequency",
	"weekly_target", "auto_source", "display_order", "updated_at",
}

// HabitService 负责习惯定义的保存、归档与查询
type HabitService struct {
	db     *gorm.DB
	policy *bluemonday.Policy
	now    func() time.Time
}

// HabitInput 定义创建/更新习惯时可配置字段
type HabitInput struct {
	ID           string
	Name         string
	Emoji        string
	Type         string
	ValueType    string
	Target       *float64
	Frequency    string
	WeeklyTarget *int
	AutoSource   string
	DisplayOrder int
	CreatedAt    *time.Time
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb, policy: bluemonday.StrictPolicy(), now: time.Now}
}

// ListActive 返回未归档的习惯，按 display_order 升序，相同时按创建顺序
func (s *HabitService) ListActive(ctx context.Context) ([]db.Habit, error) {
	var habits []db.Habit
	if err := s.ordered(ctx).Where("archived = ?", false).Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list active habits: %w", err)
	}
	return habits, nil
}

// ListAll 返回全部习惯，包括已归档的
func (s *HabitService) ListAll(ctx context.Context) ([]db.Habit, error) {
	var habits []db.Habit
	if err := s.ordered(ctx).Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

func (s *HabitService) ordered(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&db.Habit{}).
		Order("display_order ASC").
		Order("created_at ASC").
		Order("id ASC")
}

// Get 根据 ID 获取习惯
func (s *HabitService) Get(ctx context.Context, id string) (*db.Habit, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrHabitNotFound
	}

	var habit db.Habit
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Upsert 以 id 为键创建或原地更新习惯；未提供 id 时生成新的 UUID
func (s *HabitService) Upsert(ctx context.Context, input HabitInput) (*db.Habit, error) {
	habit, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(habitUpdateColumns),
	}).Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("upsert habit: %w", err)
	}

	return s.Get(ctx, habit.ID)
}

// Archive 软删除习惯，保留全部打卡历史
func (s *HabitService) Archive(ctx context.Context, id string) (*db.Habit, error) {
	result := s.db.WithContext(ctx).Model(&db.Habit{}).
		Where("id = ?", strings.TrimSpace(id)).
		Updates(map[string]any{"archived": true, "updated_at": s.now()})
	if result.Error != nil {
		return nil, fmt.Errorf("archive habit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrHabitNotFound
	}
	return s.Get(ctx, id)
}

// normalize 补全习惯字段后按 db.Habit.Validate 校验，校验失败时不会访问数据库
func (s *HabitService) normalize(input HabitInput) (db.Habit, error) {
	habit := db.Habit{
		ID:           strings.TrimSpace(input.ID),
		Name:         s.clean(input.Name),
		Emoji:        s.clean(input.Emoji),
		Type:         strings.ToLower(strings.TrimSpace(input.Type)),
		ValueType:    strings.ToLower(strings.TrimSpace(input.ValueType)),
		Frequency:    strings.ToLower(strings.TrimSpace(input.Frequency)),
		DisplayOrder: input.DisplayOrder,
		CreatedAt:    s.now(),
	}
	if habit.ID == "" {
		habit.ID = uuid.NewString()
	}
	if input.CreatedAt != nil && !input.CreatedAt.IsZero() {
		habit.CreatedAt = *input.CreatedAt
	}
	if habit.Type == "" {
		habit.Type = db.HabitTypeManual
	}
	if habit.Frequency == "" {
		habit.Frequency = db.FrequencyDaily
	}

	switch habit.Type {
	case db.HabitTypeAuto:
		habit.AutoSource = strings.ToLower(strings.TrimSpace(input.AutoSource))
		habit.ValueType = db.ValueTypeBoolean
	default:
		if habit.ValueType == "" {
			habit.ValueType = db.ValueTypeBoolean
		}
		if habit.ValueType != db.ValueTypeBoolean && input.Target != nil {
			target := *input.Target
			habit.Target = &target
		}
	}
	if habit.Frequency == db.FrequencyWeekly && input.WeeklyTarget != nil {
		weeklyTarget := *input.WeeklyTarget
		habit.WeeklyTarget = &weeklyTarget
	}

	if err := habit.Validate(); err != nil {
		return db.Habit{}, err
	}
	return habit, nil
}

// clean 去掉名称中的 HTML 标记，只保留纯文本
func (s *HabitService) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(strings.TrimSpace(value))))
}
