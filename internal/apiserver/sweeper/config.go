// Package sweeper 自动审核任务配置
package sweeper

import (
	"fmt"
	"time"

	"craftbid/internal/config"
)

// Config 自动审核任务配置
type Config struct {
	// Timeout 提交后等待多久自动通过
	Timeout time.Duration `yaml:"auto_approve_after"`

	// Interval 进程内循环的扫描间隔
	Interval time.Duration `yaml:"sweep_interval"`

	// BatchSize 扫描时每页查询的档案数；一次扫描会处理完所有超时档案
	BatchSize int `yaml:"batch_size"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:   config.DefaultAutoApproveAfter,
		Interval:  time.Minute,
		BatchSize: 100,
	}
}

// FromAppConfig 从应用配置提取
func FromAppConfig(v config.VerificationConfig) *Config {
	return &Config{
		Timeout:   v.AutoApproveAfter,
		Interval:  v.SweepInterval,
		BatchSize: v.BatchSize,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("auto-approve timeout must be positive, got %s", c.Timeout)
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	return nil
}
