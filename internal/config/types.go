package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Upload    UploadConfig    `json:"upload"`
	Database  Database        `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	R2        R2Config        `json:"r2"`
	Pool      PoolConfig      `json:"pool"`
	Lifecycle LifecycleConfig `json:"lifecycle"`
	Converter ConverterConfig `json:"converter"`
	Sentry    SentryConfig    `json:"sentry"`
}

type ServerConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type UploadConfig struct {
	MaxRequestBodyMB     int64 `json:"max_request_body"`
	MaxMultipartMemoryMB int64 `json:"max_multipart_memory"`
}

type Database struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	Password            string        `json:"password"`
	DatabaseID          int           `json:"database_id"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	DialTimeout         time.Duration `json:"dial_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout"`
	PoolSize            int           `json:"pool_size"`
	Nodes               []RedisNode   `json:"nodes"`
}

type RedisNode struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (n RedisNode) Addr() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

type R2Config struct {
	AccountID   string `json:"account_id"`
	BucketName  string `json:"bucket_name"`
	AccessKeyID string `json:"access_key_id"`
	SecretKey   string `json:"secret_key"`
	Endpoint    string `json:"endpoint"`
}

// PoolConfig sizes the conversion worker pool. Zero values fall back to
// the pool package defaults (max = CPU count, 5 minute task budget,
// 30 second idle teardown).
type PoolConfig struct {
	MinWorkers     int `json:"min_workers"`
	MaxWorkers     int `json:"max_workers"`
	QueueSize      int `json:"queue_size"`
	TaskTimeoutSec int `json:"task_timeout_sec"`
	IdleTimeoutSec int `json:"idle_timeout_sec"`
}

// LifecycleConfig controls artifact TTL and the expiry sweeper.
type LifecycleConfig struct {
	ArtifactTTLMin   int  `json:"artifact_ttl_min"`   // default 10
	SweepIntervalSec int  `json:"sweep_interval_sec"` // default 120
	RowCacheTTLSec   int  `json:"row_cache_ttl_sec"`  // default 60
	SweepLock        bool `json:"sweep_lock"`         // redis-guarded sweeps
}

func (l LifecycleConfig) ArtifactTTL() time.Duration {
	if l.ArtifactTTLMin <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(l.ArtifactTTLMin) * time.Minute
}

func (l LifecycleConfig) SweepInterval() time.Duration {
	if l.SweepIntervalSec <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(l.SweepIntervalSec) * time.Second
}

func (l LifecycleConfig) RowCacheTTL() time.Duration {
	if l.RowCacheTTLSec <= 0 {
		return time.Minute
	}
	return time.Duration(l.RowCacheTTLSec) * time.Second
}

// ConverterConfig toggles the document-engine capability probe.
type ConverterConfig struct {
	PdfToExcelForceEnable  bool `json:"pdf_to_excel_force_enable"`
	PdfToExcelForceDisable bool `json:"pdf_to_excel_force_disable"`
}

type SentryConfig struct {
	SentryDSN   string `json:"sentry_dsn"`
	Environment string `json:"environment"`
}
