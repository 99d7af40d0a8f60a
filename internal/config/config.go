package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mailbox   MailboxConfig   `mapstructure:"mailbox"`
	Cos       CosConfig       `mapstructure:"cos"`
	Segment   SegmentConfig   `mapstructure:"segment"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// MailboxConfig holds the IMAP mailbox endpoint and credentials
type MailboxConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	LoginRetries int    `mapstructure:"login_retries"`
	LoginBackoff int    `mapstructure:"login_backoff_seconds"`
}

// CosConfig holds the object-storage bucket and credentials
type CosConfig struct {
	SecretID     string `mapstructure:"secret_id"`
	SecretKey    string `mapstructure:"secret_key"`
	SessionToken string `mapstructure:"session_token"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
}

// SegmentConfig holds the word-segmentation service endpoint
type SegmentConfig struct {
	URL            string `mapstructure:"url"`
	IndexName      string `mapstructure:"index_name"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// IngestConfig holds pipeline tuning values
type IngestConfig struct {
	StagingDir string `mapstructure:"staging_dir"`
	// Ordered charset fallback chain tried after the declared charset.
	EncodingFallbacks []string `mapstructure:"encoding_fallbacks"`
	// Randomized delay range before the pre-commit uniqueness re-check.
	DedupJitterMinSeconds int `mapstructure:"dedup_jitter_min_seconds"`
	DedupJitterMaxSeconds int `mapstructure:"dedup_jitter_max_seconds"`
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("mailbox.host", "partner.outlook.cn")
	viper.SetDefault("mailbox.port", 993)
	viper.SetDefault("mailbox.login_retries", 3)
	viper.SetDefault("mailbox.login_backoff_seconds", 2)

	viper.SetDefault("segment.index_name", "report")
	viper.SetDefault("segment.timeout_seconds", 10)

	viper.SetDefault("ingest.staging_dir", "./attachments")
	viper.SetDefault("ingest.encoding_fallbacks", []string{"gb18030", "iso-8859-1"})
	viper.SetDefault("ingest.dedup_jitter_min_seconds", 1)
	viper.SetDefault("ingest.dedup_jitter_max_seconds", 4)

	viper.SetDefault("scheduler.interval_minutes", 5)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("mailbox.host", "MAILBOX_HOST")
	viper.BindEnv("mailbox.port", "MAILBOX_PORT")
	viper.BindEnv("mailbox.username", "MAILBOX_USERNAME")
	viper.BindEnv("mailbox.password", "MAILBOX_PASSWORD")

	viper.BindEnv("cos.secret_id", "COS_SECRET_ID")
	viper.BindEnv("cos.secret_key", "COS_SECRET_KEY")
	viper.BindEnv("cos.session_token", "COS_SESSION_TOKEN")
	viper.BindEnv("cos.region", "COS_REGION")
	viper.BindEnv("cos.bucket", "COS_BUCKET")

	viper.BindEnv("segment.url", "SEGMENT_URL")
	viper.BindEnv("segment.index_name", "SEGMENT_INDEX_NAME")

	viper.BindEnv("ingest.staging_dir", "INGEST_STAGING_DIR")

	viper.BindEnv("scheduler.interval_minutes", "SCHEDULER_INTERVAL_MINUTES")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Mailbox.Username == "" || c.Mailbox.Password == "" {
		return fmt.Errorf("mailbox credentials are required")
	}

	if c.Cos.SecretID == "" || c.Cos.SecretKey == "" || c.Cos.Bucket == "" || c.Cos.Region == "" {
		return fmt.Errorf("object storage credentials, bucket, and region are required")
	}

	if c.Segment.URL == "" {
		return fmt.Errorf("segmentation service url is required")
	}

	if c.Ingest.StagingDir == "" {
		return fmt.Errorf("attachment staging directory is required")
	}

	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	return nil
}
