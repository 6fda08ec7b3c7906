package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Режимы получения обновлений бота
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Window - окно времени для кнопки, HH:MM
type Window struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// Config - вся конфигурация бота
type Config struct {
	Env     string `mapstructure:"env"`
	LogFile string `mapstructure:"log_file"`

	BotToken      string `mapstructure:"bot_token"`
	Mode          string `mapstructure:"mode"`
	ListenAddr    string `mapstructure:"listen_addr"`
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`

	// MTProto-клиент для чтения истории канала
	APIID       int    `mapstructure:"api_id"`
	APIHash     string `mapstructure:"api_hash"`
	Phone       string `mapstructure:"phone"`
	Password    string `mapstructure:"password"`
	SessionPath string `mapstructure:"session_path"`
	Channel     string `mapstructure:"channel"`

	// Выгрузка вместо живого канала
	ExportPath string `mapstructure:"export_path"`

	HistoryDays       int           `mapstructure:"history_days"`
	HistoryLimit      int           `mapstructure:"history_limit"`
	MinThreshold      int           `mapstructure:"min_threshold"`
	MaxFragmentLength int           `mapstructure:"max_fragment_length"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	StaleRetry        time.Duration `mapstructure:"stale_retry"`
	SnapshotFile      string        `mapstructure:"snapshot_file"`
	FetchAttempts     uint          `mapstructure:"fetch_attempts"`

	FirstHalf  Window `mapstructure:"first_half"`
	SecondHalf Window `mapstructure:"second_half"`
}

// SetDefaults задает значения по умолчанию; без них viper не видит переменные окружения при Unmarshal
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "prod")
	v.SetDefault("log_file", "logs.txt")
	v.SetDefault("bot_token", "")
	v.SetDefault("mode", ModePolling)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("webhook_url", "")
	v.SetDefault("webhook_secret", "")
	v.SetDefault("api_id", 0)
	v.SetDefault("api_hash", "")
	v.SetDefault("phone", "")
	v.SetDefault("password", "")
	v.SetDefault("session_path", "tdsession/session.json")
	v.SetDefault("channel", "")
	v.SetDefault("export_path", "")
	v.SetDefault("history_days", 90)
	v.SetDefault("history_limit", 1000)
	v.SetDefault("min_threshold", 4)
	v.SetDefault("max_fragment_length", 20)
	v.SetDefault("cache_ttl", 24*time.Hour)
	v.SetDefault("stale_retry", 5*time.Minute)
	v.SetDefault("snapshot_file", "messages.json")
	v.SetDefault("fetch_attempts", 3)
	v.SetDefault("first_half.start", "11:00")
	v.SetDefault("first_half.end", "12:30")
	v.SetDefault("second_half.start", "12:30")
	v.SetDefault("second_half.end", "14:00")
}

// Load читает .env (если есть), переменные окружения и необязательный файл конфигурации
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ошибка загрузки .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	return &cfg, nil
}

// Validate проверяет настройки, нужные для запуска бота
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN не установлен")
	}

	switch c.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.WebhookURL == "" || c.WebhookSecret == "" {
			return errors.New("для режима webhook нужны WEBHOOK_URL и WEBHOOK_SECRET")
		}
	default:
		return fmt.Errorf("неизвестный режим %q, ожидается %s или %s", c.Mode, ModePolling, ModeWebhook)
	}

	if c.ExportPath == "" {
		if c.Channel == "" {
			return errors.New("нужен CHANNEL или EXPORT_PATH")
		}
		if c.APIID == 0 || c.APIHash == "" {
			return errors.New("для чтения канала нужны API_ID и API_HASH")
		}
	}

	if c.MinThreshold < 1 {
		return fmt.Errorf("MIN_THRESHOLD должен быть не меньше 1, получено %d", c.MinThreshold)
	}
	if c.MaxFragmentLength < 1 {
		return fmt.Errorf("MAX_FRAGMENT_LENGTH должен быть не меньше 1, получено %d", c.MaxFragmentLength)
	}
	if c.HistoryDays < 1 || c.HistoryLimit < 1 {
		return errors.New("HISTORY_DAYS и HISTORY_LIMIT должны быть положительными")
	}

	for name, w := range map[string]Window{"first_half": c.FirstHalf, "second_half": c.SecondHalf} {
		if err := w.validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

// Channel без @, как его ждет contacts.resolveUsername
func (c *Config) ChannelUsername() string {
	return strings.TrimPrefix(c.Channel, "@")
}

func (w Window) validate() error {
	start, err := time.Parse("15:04", w.Start)
	if err != nil {
		return fmt.Errorf("неверное начало окна %q", w.Start)
	}
	end, err := time.Parse("15:04", w.End)
	if err != nil {
		return fmt.Errorf("неверный конец окна %q", w.End)
	}
	if !end.After(start) {
		return fmt.Errorf("окно %s-%s пустое", w.Start, w.End)
	}
	return nil
}
