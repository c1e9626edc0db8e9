package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"cdpoauth/internal/cookie"
	"cdpoauth/pkg/domain"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite struct {
		Dsn    string `yaml:"dsn" env:"CDPOAUTH_SQLITE_DSN"`
		Prefix string `yaml:"prefix" env:"CDPOAUTH_SQLITE_PREFIX"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level" env:"CDPOAUTH_LOG_LEVEL"`
		Writer []string `yaml:"writer" env:"CDPOAUTH_LOG_WRITER" envSeparator:","`
		File   string   `yaml:"file" env:"CDPOAUTH_LOG_FILE"`
	} `yaml:"log"`

	Browser struct {
		DevToolsURL      string `yaml:"devToolsURL" env:"CDPOAUTH_DEVTOOLS_URL"`
		Target           string `yaml:"target" env:"CDPOAUTH_TARGET"`
		ProcessTimeoutMS int    `yaml:"processTimeoutMS" env:"CDPOAUTH_PROCESS_TIMEOUT_MS"`
	} `yaml:"browser"`

	Auth struct {
		Endpoint     string   `yaml:"endpoint" env:"CDPOAUTH_ENDPOINT"`
		Project      string   `yaml:"project" env:"CDPOAUTH_PROJECT"`
		Provider     string   `yaml:"provider" env:"CDPOAUTH_PROVIDER"`
		Scopes       []string `yaml:"scopes" env:"CDPOAUTH_SCOPES" envSeparator:","`
		CookieData   string   `yaml:"cookieData" env:"CDPOAUTH_COOKIE_DATA"`
		LoadingColor string   `yaml:"loadingColor" env:"CDPOAUTH_LOADING_COLOR"`
	} `yaml:"auth"`
}

var (
	ErrMissingEndpoint = errors.New("auth.endpoint is required")
	ErrMissingProvider = errors.New("auth.provider is required")
)

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	// 默认使用内存数据库，历史记录不跨进程保留
	c.Sqlite.Dsn = "file::memory:?cache=shared"
	c.Sqlite.Prefix = "cdpoauth_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console"}
	c.Log.File = "cdpoauth.log"
	c.Browser.DevToolsURL = "http://127.0.0.1:9222"
	c.Browser.ProcessTimeoutMS = 10000
	c.Auth.CookieData = cookie.DefaultAttributes
	c.Auth.LoadingColor = domain.DefaultLoadingColor
	return c
}

// Load 读取 YAML 配置文件并应用环境变量覆盖，path 为空或文件不存在时使用默认值
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate 校验认证相关的必填项
func (c *Config) Validate() error {
	if c.Auth.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Auth.Provider == "" {
		return ErrMissingProvider
	}
	return nil
}

// SessionConfig 转换为会话配置
func (c *Config) SessionConfig() domain.SessionConfig {
	return domain.SessionConfig{
		DevToolsURL:      c.Browser.DevToolsURL,
		Target:           domain.TargetID(c.Browser.Target),
		ProcessTimeoutMS: c.Browser.ProcessTimeoutMS,
		Endpoint:         c.Auth.Endpoint,
		Project:          c.Auth.Project,
		Request:          domain.NewOAuthRequest(c.Auth.Provider, c.Auth.Scopes...),
		CookieData:       c.Auth.CookieData,
		LoadingColor:     c.Auth.LoadingColor,
	}
}
