package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL string // CONFIGSYNC_DATABASE_URL (required)
	HTTPAddr    string // CONFIGSYNC_HTTP_ADDR (default ":8080")
	NATSURL     string // CONFIGSYNC_NATS_URL (optional, empty = no broker)

	// Auth settings
	JWTSecret string        // CONFIGSYNC_JWT_SECRET (required)
	TokenTTL  time.Duration // CONFIGSYNC_TOKEN_TTL (default 30m)

	// Audit settings
	AuditLog string // CONFIGSYNC_AUDIT_LOG (default "logs/config_updates.log")

	// Backup settings
	BackupInterval   time.Duration // CONFIGSYNC_BACKUP_INTERVAL (default 10m; 0 = disabled)
	BackupS3Bucket   string        // CONFIGSYNC_BACKUP_S3_BUCKET (enables S3 when set)
	BackupS3Endpoint string        // CONFIGSYNC_BACKUP_S3_ENDPOINT (custom endpoint for MinIO)
	BackupS3Region   string        // CONFIGSYNC_BACKUP_S3_REGION (default "us-east-1")
	BackupS3Key      string        // CONFIGSYNC_BACKUP_S3_KEY (default "configsync/backup.jsonl")
	BackupFile       string        // CONFIGSYNC_BACKUP_FILE (enables local file backups when set)
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("CONFIGSYNC_DATABASE_URL"),
		HTTPAddr:         envOrDefault("CONFIGSYNC_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("CONFIGSYNC_NATS_URL"),
		JWTSecret:        os.Getenv("CONFIGSYNC_JWT_SECRET"),
		AuditLog:         envOrDefault("CONFIGSYNC_AUDIT_LOG", "logs/config_updates.log"),
		BackupS3Bucket:   os.Getenv("CONFIGSYNC_BACKUP_S3_BUCKET"),
		BackupS3Endpoint: os.Getenv("CONFIGSYNC_BACKUP_S3_ENDPOINT"),
		BackupS3Region:   envOrDefault("CONFIGSYNC_BACKUP_S3_REGION", "us-east-1"),
		BackupS3Key:      envOrDefault("CONFIGSYNC_BACKUP_S3_KEY", "configsync/backup.jsonl"),
		BackupFile:       os.Getenv("CONFIGSYNC_BACKUP_FILE"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("CONFIGSYNC_DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return nil, fmt.Errorf("CONFIGSYNC_JWT_SECRET is required")
	}

	ttlStr := envOrDefault("CONFIGSYNC_TOKEN_TTL", "30m")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("CONFIGSYNC_TOKEN_TTL: %w", err)
	}
	c.TokenTTL = ttl

	intervalStr := envOrDefault("CONFIGSYNC_BACKUP_INTERVAL", "10m")
	d, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("CONFIGSYNC_BACKUP_INTERVAL: %w", err)
	}
	c.BackupInterval = d

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
