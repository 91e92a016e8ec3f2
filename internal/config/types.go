// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在 .env 文件或进程环境中（YAML 中不存储任何密码）。
//
// 配置路径确定策略：
//  1. --config 命令行参数（SetConfigDir）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：
//     - prod → /etc/craftbid/
//     - dev/test → ./configs/
package config

import "time"

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	APIServer    APIServerConfig    `yaml:"api_server"`
	FrontendURL  string             `yaml:"frontend_url"` // 前端地址（OAuth 回跳）
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	MinIO        MinIOConfig        `yaml:"minio"`
	Auth         AuthConfig         `yaml:"auth"`
	Verification VerificationConfig `yaml:"verification"`
}

// APIServerConfig API Server 配置
type APIServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres" 或 "sqlite"
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从 DB_PASSWORD 环境变量读取
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"` // 关闭时 OAuth state 使用进程内缓存，事件总线为空实现
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`   // 只从 REDIS_PASSWORD 环境变量读取
	URL      string `yaml:"url"` // 直接指定 URL（优先于 host/port/db）
}

// MinIOConfig 证件照对象存储配置
type MinIOConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// AuthConfig 认证配置
// 注意：JWTSecret/AdminEmail/AdminPassword 只从环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret       string        `yaml:"-"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	AdminEmail      string        `yaml:"-"`
	AdminPassword   string        `yaml:"-"`
	Google          GoogleConfig  `yaml:"google"`
}

// GoogleConfig Google 登录配置，ClientID 为空表示未启用
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"-"` // 只从 GOOGLE_CLIENT_SECRET 环境变量读取
	RedirectURL  string `yaml:"redirect_url"`
}

// Enabled 是否配置了 Google 登录
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// VerificationConfig 手艺人身份审核配置
type VerificationConfig struct {
	// AutoApproveAfter 提交审核后超过该时长仍未处理则自动通过
	AutoApproveAfter time.Duration `yaml:"auto_approve_after"`
	// SweepInterval 自动审核任务的扫描间隔
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// SweeperEnabled api-server 进程内是否运行自动审核循环
	// 关闭时由外部定时器调用 auto-approve 命令
	SweeperEnabled bool `yaml:"sweeper_enabled"`
	// BatchSize 自动审核分页查询的每页档案数
	BatchSize int `yaml:"batch_size"`
	// AllowResubmission 被拒绝后是否允许重新提交
	AllowResubmission bool `yaml:"allow_resubmission"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	APIPort        string
	FrontendURL    string
	DatabaseDriver string // "postgres" 或 "sqlite"
	DatabaseURL    string
	RedisURL       string // Redis 未启用时为空
	MinIO          MinIOConfig
	Auth           AuthConfig
	Verification   VerificationConfig
	ConfigFilePath string // 实际加载的配置文件路径
}
