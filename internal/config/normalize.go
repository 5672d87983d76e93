package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeServer()
	c.normalizeGeneration()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDisplay()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() {
	if value, ok := os.LookupEnv("AUDIOGEN_SERVER_URL"); ok && strings.TrimSpace(value) != "" {
		c.Server.URL = value
	}
	c.Server.URL = strings.TrimRight(strings.TrimSpace(c.Server.URL), "/")
	if c.Server.URL == "" {
		c.Server.URL = defaultServerURL
	}
	c.Server.SocketPath = strings.TrimSpace(c.Server.SocketPath)
	if c.Server.SocketPath == "" {
		c.Server.SocketPath = defaultSocketPath
	}
	c.Server.Namespace = strings.TrimSpace(c.Server.Namespace)
	if c.Server.Namespace == "" {
		c.Server.Namespace = defaultNamespace
	}
	c.Server.UploadPath = strings.TrimSpace(c.Server.UploadPath)
	if c.Server.UploadPath == "" {
		c.Server.UploadPath = defaultUploadPath
	}
	if !strings.HasPrefix(c.Server.UploadPath, "/") {
		c.Server.UploadPath = "/" + c.Server.UploadPath
	}
	if c.Server.DialTimeout <= 0 {
		c.Server.DialTimeout = defaultDialTimeout
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	if c.Server.FetchConcurrency <= 0 {
		c.Server.FetchConcurrency = defaultFetchConcurrency
	}
}

func (c *Config) normalizeGeneration() {
	c.Generation.Model = strings.ToLower(strings.TrimSpace(c.Generation.Model))
	if c.Generation.Model == "" {
		c.Generation.Model = defaultModel
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDisplay() {
	c.Display.Color = strings.ToLower(strings.TrimSpace(c.Display.Color))
	if c.Display.Color == "" {
		c.Display.Color = defaultColor
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
