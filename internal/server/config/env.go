package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultDotEnv = ".env"

// readDotEnv reads KEY=VALUE pairs from path without touching the process
// environment. A missing default file is not an error; a missing explicit
// one is.
func readDotEnv(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = defaultDotEnv
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return values, nil
}

// parseEnv overlays BLOG_* variables resolved through lookup onto config.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"BLOG_ENV":              &config.Env,
		"BLOG_HTTP_ADDR":        &config.HTTPAddr,
		"BLOG_GRPC_ADDR":        &config.GRPCAddr,
		"BLOG_DATABASE_DSN":     &config.DatabaseDSN,
		"BLOG_SECRET_KEY":       &config.SecretKey,
		"BLOG_TOKEN_ISSUER":     &config.TokenIssuer,
		"BLOG_REDIS_ADDR":       &config.RedisAddr,
		"BLOG_REDIS_PASSWORD":   &config.RedisPassword,
		"BLOG_S3_ROOT_USER":     &config.S3RootUser,
		"BLOG_S3_ROOT_PASSWORD": &config.S3RootPassword,
		"BLOG_S3_BUCKET":        &config.S3Bucket,
		"BLOG_S3_REGION":        &config.S3Region,
		"BLOG_S3_BASE_ENDPOINT": &config.S3BaseEndpoint,
		"BLOG_SMTP_URL":         &config.SMTPURL,
		"BLOG_MAIL_FROM":        &config.MailFrom,
		"BLOG_SITE_URL":         &config.SiteURL,
		"BLOG_LLM_BASE_URL":     &config.LLMBaseURL,
		"BLOG_LLM_API_KEY":      &config.LLMAPIKey,
		"BLOG_LLM_MODEL":        &config.LLMModel,
		"BLOG_ADMIN_EMAIL":      &config.AdminEmail,
		"BLOG_ADMIN_PASSWORD":   &config.AdminPassword,
		"BLOG_ADMIN_NAME":       &config.AdminName,
		"BLOG_LOG_BACKEND":      &config.LogBackend,
		"BLOG_LOG_FORMAT":       &config.LogFormat,
		"BLOG_LOG_LEVEL":        &config.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"BLOG_BCRYPT_COST":        &config.BcryptCost,
		"BLOG_REDIS_DB":           &config.RedisDB,
		"BLOG_LLM_MAX_RETRIES":    &config.LLMMaxRetries,
		"BLOG_VISITOR_QUEUE_SIZE": &config.VisitorQueueSize,
		"BLOG_VISITOR_WORKERS":    &config.VisitorWorkers,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"BLOG_TOKEN_VALIDITY":          &config.TokenValidity,
		"BLOG_LLM_TIMEOUT":             &config.LLMTimeout,
		"BLOG_VISITOR_ENQUEUE_TIMEOUT": &config.VisitorEnqueueTimeout,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := lookup("BLOG_COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BLOG_COOKIE_SECURE: %w", err)
		}
		config.CookieSecure = b
	}

	if v, ok := lookup("BLOG_TRUST_PROXY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BLOG_TRUST_PROXY: %w", err)
		}
		config.TrustProxy = b
	}

	return nil
}
