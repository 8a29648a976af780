package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"songforge/config"
	"songforge/logger"
	"songforge/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models 是需要自动迁移的全部模型
var Models = []interface{}{
	&model.User{},
	&model.UserSettings{},
	&model.Track{},
	&model.SongRequest{},
}

// Connect 根据 DB_DRIVER 建立 GORM 连接并完成迁移
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		dialector = mysql.Open(dsn)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
		}
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	gdb, err := open(dialector, gormlogger.Warn)
	if err != nil {
		return nil, err
	}

	// 获取底层的 sql.DB 并配置连接池
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		// sqlite 单写者
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := AutoMigrate(gdb); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("Successfully connected to the database with GORM.",
		logger.String("driver", cfg.DBDriver))
	return gdb, nil
}

// OpenSQLite opens (and migrates) a sqlite database; ":memory:" works for tests.
func OpenSQLite(path string) (*gorm.DB, error) {
	gdb, err := open(sqlite.Open(path), gormlogger.Silent)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

func open(d gorm.Dialector, level gormlogger.LogLevel) (*gorm.DB, error) {
	gdb, err := gorm.Open(d, &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
		// 禁用外键约束
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}
	return gdb, nil
}

// AutoMigrate 自动迁移全部模型
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	return nil
}

// Close 关闭 GORM 数据库连接
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
