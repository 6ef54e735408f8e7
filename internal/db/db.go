package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Models 列出需要自动迁移的全部模型
func Models() []any {
	return []any{
		&Habit{},
		&HabitCompletion{},
		&Workout{},
		&FoodEntry{},
		&JournalEntry{},
		&Fit{},
		&Visit{},
	}
}

// Open 打开 sqlite 数据库但不执行迁移。
// databasePath 为空时将回退到默认值 tracklog.db。
func Open(databasePath string) (*gorm.DB, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = "tracklog.db"
	}

	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	return gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// Migrate 为核心模型创建表
func Migrate(gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("database not initialized")
	}
	return gdb.AutoMigrate(Models()...)
}

// Init 初始化数据库连接并执行自动迁移。
func Init(databasePath string) error {
	gdb, err := Open(databasePath)
	if err != nil {
		return err
	}

	if err := Migrate(gdb); err != nil {
		return err
	}

	DB = gdb
	return nil
}

func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
