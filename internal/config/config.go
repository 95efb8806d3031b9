package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the portal API.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string

	JWTSecret  string
	SessionTTL time.Duration

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	SendEmailEnabled bool
	SendSMSEnabled   bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string

	ResetMaxPerUserPerDay  int
	ResetMaxPerIPPerHour   int
	TempPasswordValidity   time.Duration
	PasswordChangeMaxFails int
	PasswordChangeLockout  time.Duration

	UploadMaxMB int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and an optional
// .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("VISA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Visa Portal API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("cloudinary.folder", "visa/documents")
	v.SetDefault("send.email.enabled", true)
	v.SetDefault("send.sms.enabled", false)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("reset.max_per_user_per_day", 2)
	v.SetDefault("reset.max_per_ip_per_hour", 10)
	v.SetDefault("reset.temp_valid_minutes", 15)
	v.SetDefault("password_change.max_fails", 5)
	v.SetDefault("password_change.lockout", "15m")
	v.SetDefault("upload.max_mb", 10)

	sessionTTL, err := time.ParseDuration(v.GetString("session.ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid session ttl: %w", err)
	}

	lockout, err := time.ParseDuration(v.GetString("password_change.lockout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid password change lockout window: %w", err)
	}

	tempValidMinutes := v.GetInt("reset.temp_valid_minutes")
	if tempValidMinutes <= 0 {
		tempValidMinutes = 15
	}

	cfg := Config{
		AppName:     v.GetString("app.name"),
		AppEnv:      v.GetString("app.env"),
		AppPort:     v.GetString("app.port"),
		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),

		JWTSecret:  v.GetString("jwt.secret"),
		SessionTTL: sessionTTL,

		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),

		SendEmailEnabled: v.GetBool("send.email.enabled"),
		SendSMSEnabled:   v.GetBool("send.sms.enabled"),
		SMTPHost:         v.GetString("smtp.host"),
		SMTPPort:         v.GetInt("smtp.port"),
		SMTPUsername:     v.GetString("smtp.username"),
		SMTPPassword:     v.GetString("smtp.password"),
		SMTPFrom:         v.GetString("smtp.from"),

		ResetMaxPerUserPerDay:  v.GetInt("reset.max_per_user_per_day"),
		ResetMaxPerIPPerHour:   v.GetInt("reset.max_per_ip_per_hour"),
		TempPasswordValidity:   time.Duration(tempValidMinutes) * time.Minute,
		PasswordChangeMaxFails: v.GetInt("password_change.max_fails"),
		PasswordChangeLockout:  lockout,

		UploadMaxMB: v.GetInt("upload.max_mb"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ResetMaxPerUserPerDay <= 0 {
		cfg.ResetMaxPerUserPerDay = 2
	}
	if cfg.ResetMaxPerIPPerHour <= 0 {
		cfg.ResetMaxPerIPPerHour = 10
	}
	if cfg.PasswordChangeMaxFails <= 0 {
		cfg.PasswordChangeMaxFails = 5
	}
	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}

	return cfg, nil
}
