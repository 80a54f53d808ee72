package config

import "time"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
	// DriverNone 完全关闭对话记录
	DriverNone = "none"
)

// StoreConfig 对话记录存储配置
type StoreConfig struct {
	Driver          string        `env:"STORE_DRIVER" envDefault:"sqlite"`
	DSN             string        `env:"DATABASE_URL"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"med-assist.db"`
	BadgerPath      string        `env:"BADGER_PATH" envDefault:"data/badger"`
	LogWriteTimeout time.Duration `env:"LOG_WRITE_TIMEOUT" envDefault:"5s"`
	AutoMigrate     bool          `env:"STORE_AUTO_MIGRATE" envDefault:"true"`
}
