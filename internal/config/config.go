package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/skoret/simcard-bot/internal/status"
)

// Config holds all configuration for the application
type Config struct {
	Telegram TelegramConfig
	Database DatabaseConfig
	Reminder ReminderConfig
	Server   ServerConfig
	Log      LogConfig
}

type TelegramConfig struct {
	Token    string
	AdminIDs []int64
}

type DatabaseConfig struct {
	DSN string // postgres DSN or SQLite path
}

type ReminderConfig struct {
	ValidityDays  int
	ThresholdDays int
	Schedule      string // five-field cron spec
	Location      *time.Location
}

type ServerConfig struct {
	Port           string
	CronCheckRPS   float64
	CronCheckBurst int
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Policy returns the reminder windows as the status package expects them.
func (c *Config) Policy() status.Policy {
	return status.Policy{
		ValidityDays:          c.Reminder.ValidityDays,
		ReminderThresholdDays: c.Reminder.ThresholdDays,
	}
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that file. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	adminIDs, err := parseIDs(v.Get("admin_telegram_ids"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:    strings.TrimSpace(v.GetString("telegram_apitoken")),
			AdminIDs: adminIDs,
		},
		Database: DatabaseConfig{
			DSN: v.GetString("database_dsn"),
		},
		Reminder: ReminderConfig{
			ValidityDays:  v.GetInt("validity_days"),
			ThresholdDays: v.GetInt("reminder_days"),
			Schedule:      v.GetString("reminder_schedule"),
		},
		Server: ServerConfig{
			Port:           v.GetString("port"),
			CronCheckRPS:   v.GetFloat64("cron_check_rps"),
			CronCheckBurst: v.GetInt("cron_check_burst"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Pretty: v.GetBool("log_pretty"),
		},
	}

	loc, err := time.LoadLocation(v.GetString("reminder_timezone"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid REMINDER_TIMEZONE")
	}
	cfg.Reminder.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_dsn", "bot.db")
	v.SetDefault("validity_days", 180)
	v.SetDefault("reminder_days", 150)
	v.SetDefault("reminder_schedule", "0 9 * * *")
	v.SetDefault("reminder_timezone", "UTC")
	v.SetDefault("port", "8080")
	v.SetDefault("cron_check_rps", 0.2)
	v.SetDefault("cron_check_burst", 2)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
}

func (c *Config) validate() error {
	if c.Telegram.Token == "" {
		return errors.New("TELEGRAM_APITOKEN is required")
	}
	if len(c.Telegram.AdminIDs) == 0 {
		return errors.New("ADMIN_TELEGRAM_IDS must list at least one telegram user id")
	}
	if c.Reminder.ValidityDays <= 0 {
		return errors.Errorf("VALIDITY_DAYS must be positive, got %d", c.Reminder.ValidityDays)
	}
	if c.Reminder.ThresholdDays <= 0 {
		return errors.Errorf("REMINDER_DAYS must be positive, got %d", c.Reminder.ThresholdDays)
	}
	if _, err := cron.ParseStandard(c.Reminder.Schedule); err != nil {
		return errors.Wrapf(err, "invalid REMINDER_SCHEDULE %q", c.Reminder.Schedule)
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return errors.Errorf("PORT must be numeric, got %q", c.Server.Port)
	}
	return nil
}

// parseIDs accepts "1,2,3" from the environment or a list from a config file.
func parseIDs(raw interface{}) ([]int64, error) {
	var parts []string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		parts = strings.Split(v, ",")
	case []interface{}:
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
	case []string:
		parts = v
	default:
		parts = []string{fmt.Sprint(v)}
	}

	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, errors.Errorf("invalid admin telegram id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
