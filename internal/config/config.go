package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAutoApproveAfter 提交后自动通过的默认等待时长
const DefaultAutoApproveAfter = 5 * time.Minute

// defaults 代码硬编码默认值（YAML 未覆盖时生效）
func defaults() *YAMLConfig {
	return &YAMLConfig{
		APIServer:   APIServerConfig{Port: "8080"},
		FrontendURL: "http://localhost:5173",
		Database: DatabaseConfig{
			Driver: "sqlite", Path: "data/craftbid.db",
			Host: "localhost", Port: 5432, User: "craftbid", Name: "craftbid", SSLMode: "disable",
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		MinIO: MinIOConfig{Endpoint: "localhost:9000", Bucket: "craftbid-id-documents"},
		Auth: AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Verification: VerificationConfig{
			AutoApproveAfter:  DefaultAutoApproveAfter,
			SweepInterval:     time.Minute,
			SweeperEnabled:    true,
			BatchSize:         100,
			AllowResubmission: true,
		},
	}
}

// Load 加载配置
//  1. 加载 .env.{env}（敏感信息）
//  2. 加载 {env}.yaml
//  3. 环境变量覆盖并校验
func Load() (*Config, error) {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)

	yamlCfg, path, err := loadYAMLConfig(env)
	if err != nil {
		return nil, err
	}
	return build(env, yamlCfg, path)
}

// loadYAMLConfig 加载 YAML 配置文件，文件不存在时使用默认值
func loadYAMLConfig(env Environment) (*YAMLConfig, string, error) {
	cfg := defaults()
	path := findConfigFile(env)
	if path == "" {
		return cfg, "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, path, nil
}

// build 合并环境变量并生成最终配置
func build(env Environment, y *YAMLConfig, path string) (*Config, error) {
	y.Database.Password = getEnv("DB_PASSWORD", "craftbid_dev_password")
	y.Redis.Password = os.Getenv("REDIS_PASSWORD")
	y.MinIO.AccessKey = os.Getenv("MINIO_ROOT_USER")
	y.MinIO.SecretKey = os.Getenv("MINIO_ROOT_PASSWORD")
	y.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	y.Auth.AdminEmail = os.Getenv("ADMIN_EMAIL")
	y.Auth.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	y.Auth.Google.ClientID = getEnv("GOOGLE_CLIENT_ID", y.Auth.Google.ClientID)
	y.Auth.Google.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")

	var err error
	if y.Verification.AutoApproveAfter, err = durationEnv("AUTO_APPROVE_AFTER", y.Verification.AutoApproveAfter); err != nil {
		return nil, err
	}
	if y.Verification.SweepInterval, err = durationEnv("SWEEP_INTERVAL", y.Verification.SweepInterval); err != nil {
		return nil, err
	}

	databaseURL := os.Getenv("DATABASE_URL")
	driver := detectDatabaseDriver(y.Database.Driver, databaseURL)
	if databaseURL == "" {
		y.Database.Driver = driver
		databaseURL = buildDatabaseURL(y.Database, y.Database.Password)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" && y.Redis.Enabled {
		redisURL = buildRedisURL(y.Redis)
	}

	cfg := &Config{
		Env:            env,
		APIPort:        getEnv("API_PORT", y.APIServer.Port),
		FrontendURL:    getEnv("FRONTEND_URL", y.FrontendURL),
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		RedisURL:       redisURL,
		MinIO:          y.MinIO,
		Auth:           y.Auth,
		Verification:   y.Verification,
		ConfigFilePath: path,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置并填充缺省值
func (c *Config) Validate() error {
	if c.Verification.AutoApproveAfter <= 0 {
		return fmt.Errorf("verification.auto_approve_after must be positive, got %s", c.Verification.AutoApproveAfter)
	}
	if c.Verification.SweepInterval <= 0 {
		return fmt.Errorf("verification.sweep_interval must be positive, got %s", c.Verification.SweepInterval)
	}
	if c.Verification.BatchSize <= 0 {
		c.Verification.BatchSize = 100
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.JWTSecret == "" {
		if c.Env == EnvProduction {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.Auth.JWTSecret = "craftbid-dev-secret-change-me"
	}
	if c.MinIO.Enabled && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		return fmt.Errorf("minio is enabled but MINIO_ROOT_USER/MINIO_ROOT_PASSWORD are not set")
	}
	return nil
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// RedisEnabled 是否配置了 Redis
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Driver: %s, DB: %s, Redis: %s, AutoApproveAfter: %s, SweepInterval: %s}",
		c.Env, c.DatabaseDriver, maskPassword(c.DatabaseURL), maskPassword(c.RedisURL),
		c.Verification.AutoApproveAfter, c.Verification.SweepInterval)
}
