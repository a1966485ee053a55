package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config defines service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Log    LogConfig    `yaml:"log"`
	QC     QCConfig     `yaml:"qc"`
	Alert  AlertConfig  `yaml:"alert"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AllowlistPath points at a newline-delimited file of source IPs
	// permitted to hit the trigger endpoints. Empty disables the check.
	AllowlistPath string `yaml:"allowlist_path"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type QCConfig struct {
	// Strategy names the outlier strategy: Chauvenet, Pierce, or QQ.
	Strategy string `yaml:"strategy"`
	// Projects scopes sweeps to these project IDs.
	Projects []int64 `yaml:"projects"`
	// Production enables ticket-store writes; off, anomalies only spool.
	Production bool `yaml:"production"`
	// Notify enables messenger pings to resolved reviewers.
	Notify bool `yaml:"notify"`
	// AuthorUserID is the service account recorded on opened tickets.
	AuthorUserID int64 `yaml:"author_user_id"`
	// AlertThreshold is the per-cycle ticket growth that triggers an alert.
	AlertThreshold int `yaml:"alert_threshold"`
	// StaleHours is how long the routine may go silent before the watchdog
	// alerts.
	StaleHours int `yaml:"stale_hours"`
	// StateDir holds checkpoints, the spool, and watchdog timestamps.
	StateDir string `yaml:"state_dir"`
}

type AlertConfig struct {
	// SMTPAddr is the relay host:port. Empty routes alerts to the log.
	SMTPAddr string   `yaml:"smtp_addr"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "dataqc.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		QC: QCConfig{
			Strategy:       "Chauvenet",
			AlertThreshold: 50,
			StaleHours:     24,
			StateDir:       "state",
		},
	}

	if path := os.Getenv("DATAQC_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("DATAQC_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("DATAQC_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATAQC_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if path := os.Getenv("DATAQC_ALLOWLIST_PATH"); path != "" {
		cfg.Server.AllowlistPath = path
	}
	if dbPath := os.Getenv("DATAQC_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("DATAQC_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if path := os.Getenv("DATAQC_LOG_PATH"); path != "" {
		cfg.Log.Path = path
	}
	if strategy := os.Getenv("DATAQC_STRATEGY"); strategy != "" {
		cfg.QC.Strategy = strategy
	}
	if projects := os.Getenv("DATAQC_PROJECTS"); projects != "" {
		ids, err := parseProjectIDs(projects)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATAQC_PROJECTS: %w", err)
		}
		cfg.QC.Projects = ids
	}
	if v := os.Getenv("DATAQC_PRODUCTION"); v != "" {
		cfg.QC.Production = parseBool(v)
	}
	if v := os.Getenv("DATAQC_NOTIFY"); v != "" {
		cfg.QC.Notify = parseBool(v)
	}
	if v := os.Getenv("DATAQC_AUTHOR_USER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATAQC_AUTHOR_USER_ID: %w", err)
		}
		cfg.QC.AuthorUserID = id
	}
	if v := os.Getenv("DATAQC_ALERT_THRESHOLD"); v != "" {
		threshold, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATAQC_ALERT_THRESHOLD: %w", err)
		}
		cfg.QC.AlertThreshold = threshold
	}
	if v := os.Getenv("DATAQC_STALE_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATAQC_STALE_HOURS: %w", err)
		}
		cfg.QC.StaleHours = hours
	}
	if dir := os.Getenv("DATAQC_STATE_DIR"); dir != "" {
		cfg.QC.StateDir = dir
	}
	if addr := os.Getenv("DATAQC_SMTP_ADDR"); addr != "" {
		cfg.Alert.SMTPAddr = addr
	}
	if from := os.Getenv("DATAQC_ALERT_FROM"); from != "" {
		cfg.Alert.From = from
	}
	if to := os.Getenv("DATAQC_ALERT_TO"); to != "" {
		cfg.Alert.To = splitList(to)
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func parseProjectIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
