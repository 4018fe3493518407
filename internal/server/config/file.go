package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/blogkeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for JSON and YAML decoding. Fields left out of
// the file keep their current values.
type fileConfig struct {
	Env string `json:"env" yaml:"env"`

	HTTPAddr string `json:"http_addr" yaml:"http_addr"`
	GRPCAddr string `json:"grpc_addr" yaml:"grpc_addr"`

	TrustProxy *bool `json:"trust_proxy" yaml:"trust_proxy"`

	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`

	SecretKey     string         `json:"secret_key" yaml:"secret_key"`
	TokenIssuer   string         `json:"token_issuer" yaml:"token_issuer"`
	TokenValidity timex.Duration `json:"token_validity" yaml:"token_validity"`
	CookieSecure  *bool          `json:"cookie_secure" yaml:"cookie_secure"`
	BcryptCost    int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`

	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`

	S3RootUser     string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`

	SMTPURL  string `json:"smtp_url" yaml:"smtp_url"`
	MailFrom string `json:"mail_from" yaml:"mail_from"`
	SiteURL  string `json:"site_url" yaml:"site_url"`

	LLMBaseURL    string         `json:"llm_base_url" yaml:"llm_base_url"`
	LLMAPIKey     string         `json:"llm_api_key" yaml:"llm_api_key"`
	LLMModel      string         `json:"llm_model" yaml:"llm_model"`
	LLMMaxRetries *int           `json:"llm_max_retries" yaml:"llm_max_retries"`
	LLMTimeout    timex.Duration `json:"llm_timeout" yaml:"llm_timeout"`

	VisitorQueueSize      int            `json:"visitor_queue_size" yaml:"visitor_queue_size"`
	VisitorWorkers        int            `json:"visitor_workers" yaml:"visitor_workers"`
	VisitorEnqueueTimeout timex.Duration `json:"visitor_enqueue_timeout" yaml:"visitor_enqueue_timeout"`

	AdminEmail    string `json:"admin_email" yaml:"admin_email"`
	AdminPassword string `json:"admin_password" yaml:"admin_password"`
	AdminName     string `json:"admin_name" yaml:"admin_name"`

	LogBackend string `json:"log_backend" yaml:"log_backend"`
	LogFormat  string `json:"log_format" yaml:"log_format"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
}

// parseFile overlays the JSON or YAML file at path onto config. The format
// is chosen by extension: .yaml/.yml is YAML, anything else JSON.
func parseFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &fileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *fileConfig) apply(config *Config) {
	setString(&config.Env, c.Env)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TokenIssuer, c.TokenIssuer)
	if c.TokenValidity.Duration != 0 {
		config.TokenValidity = c.TokenValidity.Duration
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.TrustProxy != nil {
		config.TrustProxy = *c.TrustProxy
	}
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.SMTPURL, c.SMTPURL)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.SiteURL, c.SiteURL)
	setString(&config.LLMBaseURL, c.LLMBaseURL)
	setString(&config.LLMAPIKey, c.LLMAPIKey)
	setString(&config.LLMModel, c.LLMModel)
	if c.LLMMaxRetries != nil {
		config.LLMMaxRetries = *c.LLMMaxRetries
	}
	if c.LLMTimeout.Duration != 0 {
		config.LLMTimeout = c.LLMTimeout.Duration
	}
	setInt(&config.VisitorQueueSize, c.VisitorQueueSize)
	setInt(&config.VisitorWorkers, c.VisitorWorkers)
	if c.VisitorEnqueueTimeout.Duration != 0 {
		config.VisitorEnqueueTimeout = c.VisitorEnqueueTimeout.Duration
	}
	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.AdminName, c.AdminName)
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
