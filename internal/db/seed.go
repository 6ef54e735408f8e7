package db

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fixtures 描述 seed 文件的结构，用于本地演示与测试数据生成
type Fixtures struct {
	Habits      []HabitFixture      `yaml:"habits"`
	Completions []CompletionFixture `yaml:"completions"`
	Workouts    []Workout           `yaml:"workouts"`
	Food        []FoodEntry         `yaml:"food"`
	Journal     []JournalEntry      `yaml:"journal"`
	Fits        []Fit               `yaml:"fits"`
	Visits      []Visit             `yaml:"visits"`
}

// HabitFixture 对应 Habit，字段名与 API 保持一致
type HabitFixture struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Emoji        string   `yaml:"emoji"`
	Type         string   `yaml:"type"`
	ValueType    string   `yaml:"valueType"`
	Target       *float64 `yaml:"target"`
	Frequency    string   `yaml:"frequency"`
	WeeklyTarget *int     `yaml:"weeklyTarget"`
	AutoSource   string   `yaml:"autoSource"`
	DisplayOrder int      `yaml:"displayOrder"`
	Archived     bool     `yaml:"archived"`
}

// CompletionFixture 对应 HabitCompletion
type CompletionFixture struct {
	ID        string   `yaml:"id"`
	HabitID   string   `yaml:"habitId"`
	Date      string   `yaml:"date"`
	Completed bool     `yaml:"completed"`
	Value     *float64 `yaml:"value"`
}

// SeedResult 汇总写入条数
type SeedResult struct {
	Habits      int
	Completions int
	Entries     int
}

// LoadFixtures 从 YAML 文件读取 seed 数据
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}

	var fixtures Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &fixtures, nil
}

// Seed 在单个事务内写入 fixtures，主键冲突的行会被跳过，因此可以重复执行
func Seed(gdb *gorm.DB, fixtures *Fixtures) (SeedResult, error) {
	var result SeedResult
	if fixtures == nil {
		return result, nil
	}

	now := time.Now()
	err := gdb.Transaction(func(tx *gorm.DB) error {
		for i, f := range fixtures.Habits {
			habit := f.habit(now.Add(time.Duration(i) * time.Millisecond))
			if habit.ID == "" {
				return fmt.Errorf("seed habit #%d: %w: id is required", i+1, ErrInvalidHabit)
			}
			if err := habit.Validate(); err != nil {
				return fmt.Errorf("seed habit %s: %w", habit.ID, err)
			}
			res := insertIgnore(tx, &habit)
			if res.Error != nil {
				return fmt.Errorf("seed habit %s: %w", habit.ID, res.Error)
			}
			result.Habits += int(res.RowsAffected)
		}

		for _, f := range fixtures.Completions {
			if err := checkCompletionFixture(tx, f); err != nil {
				return fmt.Errorf("seed completion %s: %w", f.ID, err)
			}
			completion := HabitCompletion{
				ID:        f.ID,
				HabitID:   f.HabitID,
				Date:      f.Date,
				Completed: EffectivelyComplete(f.Completed, f.Value),
				Value:     f.Value,
			}
			res := insertIgnore(tx, &completion)
			if res.Error != nil {
				return fmt.Errorf("seed completion %s: %w", f.ID, res.Error)
			}
			result.Completions += int(res.RowsAffected)
		}

		entries := []any{}
		for i := range fixtures.Workouts {
			entries = append(entries, &fixtures.Workouts[i])
		}
		for i := range fixtures.Food {
			entries = append(entries, &fixtures.Food[i])
		}
		for i := range fixtures.Journal {
			entries = append(entries, &fixtures.Journal[i])
		}
		for i := range fixtures.Fits {
			entries = append(entries, &fixtures.Fits[i])
		}
		for i := range fixtures.Visits {
			entries = append(entries, &fixtures.Visits[i])
		}
		for _, entry := range entries {
			res := insertIgnore(tx, entry)
			if res.Error != nil {
				return fmt.Errorf("seed tracker entry: %w", res.Error)
			}
			result.Entries += int(res.RowsAffected)
		}

		return nil
	})

	return result, err
}

// habit 补全与 API 相同的默认值：auto 习惯固定为 boolean，boolean 习惯不保留 target
func (f HabitFixture) habit(createdAt time.Time) Habit {
	habit := Habit{
		ID:           strings.TrimSpace(f.ID),
		Name:         strings.TrimSpace(f.Name),
		Emoji:        f.Emoji,
		Type:         orDefault(f.Type, HabitTypeManual),
		ValueType:    orDefault(f.ValueType, ValueTypeBoolean),
		Target:       f.Target,
		Frequency:    orDefault(f.Frequency, FrequencyDaily),
		AutoSource:   strings.ToLower(strings.TrimSpace(f.AutoSource)),
		DisplayOrder: f.DisplayOrder,
		Archived:     f.Archived,
		CreatedAt:    createdAt,
	}
	if habit.IsAuto() {
		habit.ValueType = ValueTypeBoolean
	}
	if habit.ValueType == ValueTypeBoolean {
		habit.Target = nil
	}
	if habit.Frequency == FrequencyWeekly {
		habit.WeeklyTarget = f.WeeklyTarget
	}
	return habit
}

// checkCompletionFixture 只允许为已存在的手动习惯写入合法日期的打卡
func checkCompletionFixture(tx *gorm.DB, f CompletionFixture) error {
	if f.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCompletion)
	}
	if _, err := time.Parse(time.DateOnly, f.Date); err != nil {
		return fmt.Errorf("%w: invalid date %q", ErrInvalidCompletion, f.Date)
	}
	if f.Value != nil && *f.Value < 0 {
		return fmt.Errorf("%w: value must not be negative", ErrInvalidCompletion)
	}

	var habit Habit
	if err := tx.Where("id = ?", f.HabitID).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: unknown habit %q", ErrInvalidCompletion, f.HabitID)
		}
		return err
	}
	if habit.IsAuto() {
		return fmt.Errorf("%w: auto habit %s is completed by its source", ErrInvalidCompletion, habit.ID)
	}
	return nil
}

func insertIgnore(tx *gorm.DB, value any) *gorm.DB {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(value)
}

func orDefault(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
