package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *HubConfig) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}

	paths := map[string]string{
		"server.device_path":     c.Server.DevicePath,
		"server.controller_path": c.Server.ControllerPath,
		"server.app_path":        c.Server.AppPath,
	}
	seen := make(map[string]string, len(paths))
	for _, name := range []string{"server.device_path", "server.controller_path", "server.app_path"} {
		p := paths[name]
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with /, got %q", name, p)
		}
		if other, dup := seen[p]; dup {
			return fmt.Errorf("%s duplicates %s (%q)", name, other, p)
		}
		seen[p] = name
	}

	if c.Server.SendBufferSize < 1 {
		return errors.New("server.send_buffer_size must be >= 1")
	}
	if c.Server.PongTimeout <= c.Server.PingInterval {
		return fmt.Errorf("server.pong_timeout (%v) must exceed server.ping_interval (%v)", c.Server.PongTimeout, c.Server.PingInterval)
	}

	switch c.Skills.Source {
	case SkillsSourceStatic:
	case SkillsSourceFile:
		if c.Skills.ManifestPath == "" {
			return errors.New("skills.manifest_path is required when skills.source is file")
		}
	case SkillsSourcePostgres:
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("skills.source must be one of static, file, postgres, got %q", c.Skills.Source)
	}

	switch c.Skills.Arbitration {
	case ArbitrationAll, ArbitrationHighestPriority:
	default:
		return fmt.Errorf("skills.arbitration must be all or highest_priority, got %q", c.Skills.Arbitration)
	}

	if c.NLU.MaxRetries < 0 {
		return errors.New("nlu.max_retries must be >= 0")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
