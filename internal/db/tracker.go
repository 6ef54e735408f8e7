package db

import (
	"slices"
	"time"
)

// 以下模型属于其他记录模块（训练、饮食、日记、穿搭、机场访问），
// 习惯引擎只按日期列判断是否存在记录。日期统一存 YYYY-MM-DD。

// SourceTable 描述自动来源对应的表与日期列
type SourceTable struct {
	Table      string
	DateColumn string
}

// 自动来源到记录表的固定映射，不支持用户配置
var sourceTables = map[string]SourceTable{
	"workouts": {Table: "workouts", DateColumn: "log_date"},
	"food":     {Table: "food_entries", DateColumn: "entry_date"},
	"journal":  {Table: "journal_entries", DateColumn: "entry_date"},
	"fits":     {Table: "fits", DateColumn: "entry_date"},
	"visits":   {Table: "visits", DateColumn: "visit_date"},
}

// LookupSourceTable 返回来源对应的表，name 需为小写
func LookupSourceTable(name string) (SourceTable, bool) {
	table, ok := sourceTables[name]
	return table, ok
}

// SourceNames 返回全部来源名称，按字母排序
func SourceNames() []string {
	names := make([]string, 0, len(sourceTables))
	for name := range sourceTables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Workout 训练记录
type Workout struct {
	ID        string  `gorm:"primaryKey;size:64" yaml:"id"`
	LogDate   string  `gorm:"size:10;not null;index" yaml:"logDate"`
	Name      string  `yaml:"name"`
	Volume    float64 `yaml:"volume"`
	CreatedAt time.Time
}

// TableName 与自动来源映射表保持一致
func (Workout) TableName() string {
	return "workouts"
}

// FoodEntry 饮食记录
type FoodEntry struct {
	ID          string `gorm:"primaryKey;size:64" yaml:"id"`
	EntryDate   string `gorm:"size:10;not null;index" yaml:"entryDate"`
	Description string `yaml:"description"`
	Calories    int    `yaml:"calories"`
	CreatedAt   time.Time
}

func (FoodEntry) TableName() string {
	return "food_entries"
}

// JournalEntry 日记
type JournalEntry struct {
	ID        string `gorm:"primaryKey;size:64" yaml:"id"`
	EntryDate string `gorm:"size:10;not null;index" yaml:"entryDate"`
	Body      string `yaml:"body"`
	CreatedAt time.Time
}

func (JournalEntry) TableName() string {
	return "journal_entries"
}

// Fit 穿搭记录
type Fit struct {
	ID          string `gorm:"primaryKey;size:64" yaml:"id"`
	EntryDate   string `gorm:"size:10;not null;index" yaml:"entryDate"`
	Description string `yaml:"description"`
	CreatedAt   time.Time
}

func (Fit) TableName() string {
	return "fits"
}

// Visit 机场访问记录
type Visit struct {
	ID          string `gorm:"primaryKey;size:64" yaml:"id"`
	VisitDate   string `gorm:"size:10;not null;index" yaml:"visitDate"`
	AirportCode string `gorm:"size:8" yaml:"airportCode"`
	CreatedAt   time.Time
}

func (Visit) TableName() string {
	return "visits"
}
