package db

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidHabit 当习惯定义不满足约束时返回
	ErrInvalidHabit = errors.New("invalid habit")
	// ErrInvalidCompletion 当打卡数据不合法时返回
	ErrInvalidCompletion = errors.New("invalid completion")
)

// 习惯类型
const (
	HabitTypeManual = "manual"
	HabitTypeAuto   = "auto"
)

// 数值类型，auto 习惯固定为 boolean
const (
	ValueTypeBoolean  = "boolean"
	ValueTypeCount    = "count"
	ValueTypeDuration = "duration"
)

// 频率
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

// Habit 定义了习惯模型
// ID 由客户端生成，生命周期内保持不变；编辑只修改字段
// Archived 为软删除标记，归档后历史打卡保留
type Habit struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Emoji        string    `json:"emoji,omitempty"`
	Type         string    `gorm:"size:16;not null;default:manual" json:"type"`
	ValueType    string    `gorm:"size:16;not null;default:boolean" json:"valueType"`
	Target       *float64  `json:"target,omitempty"`
	Frequency    string    `gorm:"size:16;not null;default:daily" json:"frequency"`
	WeeklyTarget *int      `json:"weeklyTarget,omitempty"`
	AutoSource   string    `gorm:"size:16" json:"autoSource,omitempty"`
	DisplayOrder int       `gorm:"index" json:"displayOrder"`
	Archived     bool      `gorm:"index;not null" json:"archived"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`
}

// IsAuto 判断是否为自动习惯
func (h Habit) IsAuto() bool {
	return h.Type == HabitTypeAuto
}

// Validate 检查习惯的不变量，调用方需先补全默认值。
// API 写入与 seed 共用这一份规则。
func (h Habit) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidHabit)
	}

	switch h.Type {
	case HabitTypeManual:
		switch h.ValueType {
		case ValueTypeBoolean, ValueTypeCount, ValueTypeDuration:
		default:
			return fmt.Errorf("%w: unsupported value type %q", ErrInvalidHabit, h.ValueType)
		}
		if h.Target != nil && *h.Target <= 0 {
			return fmt.Errorf("%w: target must be positive", ErrInvalidHabit)
		}
	case HabitTypeAuto:
		if h.AutoSource == "" {
			return fmt.Errorf("%w: auto habits require an auto source", ErrInvalidHabit)
		}
		if _, ok := LookupSourceTable(h.AutoSource); !ok {
			return fmt.Errorf("%w: unknown auto source %q", ErrInvalidHabit, h.AutoSource)
		}
		if h.ValueType != ValueTypeBoolean {
			return fmt.Errorf("%w: auto habits are boolean", ErrInvalidHabit)
		}
	default:
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidHabit, h.Type)
	}

	switch h.Frequency {
	case FrequencyDaily:
	case FrequencyWeekly:
		if h.WeeklyTarget == nil || *h.WeeklyTarget < 1 {
			return fmt.Errorf("%w: weekly habits require a positive weekly target", ErrInvalidHabit)
		}
	default:
		return fmt.Errorf("%w: unsupported frequency %q", ErrInvalidHabit, h.Frequency)
	}
	return nil
}

// TracksValue 判断手动习惯是否记录数值（count/duration）
func (h Habit) TracksValue() bool {
	return !h.IsAuto() && (h.ValueType == ValueTypeCount || h.ValueType == ValueTypeDuration)
}

// HabitCompletion 记录手动习惯的单日完成情况
// HabitID + Date 采用唯一索引，保证每个习惯每天最多一条
type HabitCompletion struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	HabitID   string    `gorm:"size:64;not null;index;uniqueIndex:idx_habit_completion_day" json:"habitId"`
	Date      string    `gorm:"size:10;not null;index;uniqueIndex:idx_habit_completion_day" json:"date"`
	Completed bool      `gorm:"not null" json:"completed"`
	Value     *float64  `json:"value,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

// TableName 重写确保唯一索引作用到 habit_id + date
func (HabitCompletion) TableName() string {
	return "habit_completions"
}

// IsEffectivelyComplete 是唯一的完成判定规则：completed 为真，或 value 存在且大于 0
func (c HabitCompletion) IsEffectivelyComplete() bool {
	return EffectivelyComplete(c.Completed, c.Value)
}

// EffectivelyComplete 供写入前归一化 completed 字段使用
func EffectivelyComplete(completed bool, value *float64) bool {
	return completed || (value != nil && *value > 0)
}
