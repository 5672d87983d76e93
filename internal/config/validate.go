package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateAdvanced(); err != nil {
		return err
	}
	if err := c.validateDisplay(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	parsed, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("server.url must use http or https, got %q", c.Server.URL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("server.url must include a host, got %q", c.Server.URL)
	}
	return nil
}

func (c *Config) validateGeneration() error {
	g := c.Generation
	if g.TopK < 0 {
		return errors.New("generation.top_k must be non-negative")
	}
	if !finite(g.TopP) || g.TopP < 0 || g.TopP > 1 {
		return errors.New("generation.top_p must be between 0 and 1")
	}
	if !finite(g.Temperature) || g.Temperature <= 0 {
		return errors.New("generation.temperature must be positive")
	}
	if !finite(g.CFGCoef) || g.CFGCoef < 0 {
		return errors.New("generation.cfg_coef must be non-negative")
	}
	if g.Duration <= 0 {
		return errors.New("generation.duration must be positive")
	}
	return nil
}

func (c *Config) validateAdvanced() error {
	if c.Advanced.FadeMS < 0 {
		return errors.New("advanced.fade_ms must be non-negative")
	}
	if !finite(c.Advanced.LoudnessHeadroomDB) || c.Advanced.LoudnessHeadroomDB < 0 {
		return errors.New("advanced.loudness_headroom_db must be a non-negative number")
	}
	if c.Advanced.Seed < 0 {
		return errors.New("advanced.seed must be non-negative")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c *Config) validateDisplay() error {
	if c.Display.FinishedRevertMS < 0 {
		return errors.New("display.finished_revert_ms must be non-negative")
	}
	if !finite(c.Display.StartedPercent) || c.Display.StartedPercent < 0 || c.Display.StartedPercent > 100 {
		return errors.New("display.started_percent must be between 0 and 100")
	}
	switch c.Display.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("display.color must be auto, always or never, got %q", c.Display.Color)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil {
		return fmt.Errorf("notifications.ntfy_topic: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) topic URL, got %q", topic)
	}
	return nil
}
