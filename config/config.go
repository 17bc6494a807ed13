package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	AppURL   string
	Debug    bool
	LogLevel string
	DB       DBConfig
	JWT      JWTConfig
	Blog     BlogConfig
	Search   SearchConfig
	Notify   NotifyConfig
}

type BlogConfig struct {
	ItemPerPage  int
	RelatedLimit int
	RenderCache  int
}

type SearchConfig struct {
	Rate  float64
	Burst int
}

type NotifyConfig struct {
	Driver  string
	Workers int
	Buffer  int
	SMTP    SMTPConfig
	SQS     SQSConfig
}

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

type SQSConfig struct {
	QueueURL        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_URL", "http://localhost:8080")
	v.SetDefault("APP_DEBUG", false)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "blog")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("JWT_SECRET", "your-secret-key-change-this-in-production")
	v.SetDefault("JWT_EXPIRATION", 24*time.Hour)

	v.SetDefault("BLOG_ITEM_PER_PAGE", 10)
	v.SetDefault("BLOG_RELATED_LIMIT", 3)
	v.SetDefault("BLOG_RENDER_CACHE", 256)

	v.SetDefault("SEARCH_RATE", 5.0)
	v.SetDefault("SEARCH_BURST", 10)

	v.SetDefault("NOTIFY_DRIVER", "log")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_BUFFER", 100)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM_NAME", "Blog")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:     v.GetString("PORT"),
		AppURL:   strings.TrimRight(v.GetString("APP_URL"), "/"),
		Debug:    v.GetBool("APP_DEBUG"),
		LogLevel: v.GetString("LOG_LEVEL"),
		DB: DBConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{
			Secret:     []byte(v.GetString("JWT_SECRET")),
			Expiration: v.GetDuration("JWT_EXPIRATION"),
		},
		Blog: BlogConfig{
			ItemPerPage:  v.GetInt("BLOG_ITEM_PER_PAGE"),
			RelatedLimit: v.GetInt("BLOG_RELATED_LIMIT"),
			RenderCache:  v.GetInt("BLOG_RENDER_CACHE"),
		},
		Search: SearchConfig{
			Rate:  v.GetFloat64("SEARCH_RATE"),
			Burst: v.GetInt("SEARCH_BURST"),
		},
		Notify: NotifyConfig{
			Driver:  strings.ToLower(strings.TrimSpace(v.GetString("NOTIFY_DRIVER"))),
			Workers: v.GetInt("NOTIFY_WORKERS"),
			Buffer:  v.GetInt("NOTIFY_BUFFER"),
			SMTP: SMTPConfig{
				Host:        v.GetString("SMTP_HOST"),
				Port:        v.GetInt("SMTP_PORT"),
				Username:    v.GetString("SMTP_USERNAME"),
				Password:    v.GetString("SMTP_PASSWORD"),
				FromAddress: v.GetString("SMTP_FROM_ADDRESS"),
				FromName:    v.GetString("SMTP_FROM_NAME"),
			},
			SQS: SQSConfig{
				QueueURL:        v.GetString("NOTIFY_SQS_QUEUE_URL"),
				Region:          v.GetString("NOTIFY_SQS_REGION"),
				AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
