package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSMTP(); err != nil {
		return err
	}
	c.normalizeMail()
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WarehouseConfig) == "" {
		c.Paths.WarehouseConfig = defaultWarehouseConfigPath
	}
	if c.Paths.WarehouseConfig, err = expandPath(c.Paths.WarehouseConfig); err != nil {
		return fmt.Errorf("paths.warehouse_config: %w", err)
	}
	return nil
}

func (c *Config) normalizeSMTP() error {
	c.SMTP.Host = strings.TrimSpace(c.SMTP.Host)
	if c.SMTP.Host == "" {
		if value, ok := os.LookupEnv("COURIER_SMTP_HOST"); ok {
			c.SMTP.Host = strings.TrimSpace(value)
		}
	}
	c.SMTP.Username = strings.TrimSpace(c.SMTP.Username)
	if c.SMTP.Username == "" {
		if value, ok := os.LookupEnv("COURIER_SMTP_USERNAME"); ok {
			c.SMTP.Username = strings.TrimSpace(value)
		}
	}
	if c.SMTP.Password == "" {
		if value, ok := os.LookupEnv("COURIER_SMTP_PASSWORD"); ok {
			c.SMTP.Password = value
		}
	}
	if value, ok := os.LookupEnv("COURIER_SMTP_PORT"); ok && c.SMTP.Port == defaultSMTPPort {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("COURIER_SMTP_PORT: %w", err)
		}
		c.SMTP.Port = port
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = defaultSMTPPort
	}
	if c.SMTP.Timeout <= 0 {
		c.SMTP.Timeout = defaultSMTPTimeout
	}
	c.SMTP.FromName = strings.TrimSpace(c.SMTP.FromName)
	return nil
}

func (c *Config) normalizeMail() {
	if strings.TrimSpace(c.Mail.SubjectTemplate) == "" {
		c.Mail.SubjectTemplate = defaultSubjectTemplate
	}
	if strings.TrimSpace(c.Mail.BodyTemplate) == "" {
		c.Mail.BodyTemplate = defaultBodyTemplate
	}
	c.Mail.DateFormat = strings.TrimSpace(c.Mail.DateFormat)
	if c.Mail.DateFormat == "" {
		c.Mail.DateFormat = defaultDateFormat
	}
}

func (c *Config) normalizeLedger() error {
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = defaultLedgerBackend
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		name := defaultLedgerFile
		if c.Ledger.Backend == LedgerBackendSQLite {
			name = defaultLedgerDBFile
		}
		c.Ledger.Path = filepath.Join(c.Paths.StateDir, name)
	}
	var err error
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	case "json":
		c.Logging.Format = "json"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("COURIER_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}
