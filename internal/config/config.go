package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

type Config struct {
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	Backend string `yaml:"store_backend" env:"STORE_BACKEND" env-default:"local"`

	LocalPath  string `yaml:"local_store_path" env:"LOCAL_STORE_PATH" env-default:"homework.json"`
	WatchLocal bool   `yaml:"local_store_watch" env:"LOCAL_STORE_WATCH" env-default:"true"`

	DatabaseURL    string        `yaml:"database_url" env:"DATABASE_URL"`
	Namespace      string        `yaml:"namespace" env:"HOMEWORK_NAMESPACE" env-default:"homework"`
	Migrate        bool          `yaml:"migrate" env:"MIGRATE" env-default:"true"`
	WorkerCount    int           `yaml:"worker_count" env:"WORKER_COUNT" env-default:"3"`
	QueueDepth     int           `yaml:"write_queue_depth" env:"WRITE_QUEUE_DEPTH" env-default:"64"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"RECONNECT_DELAY" env-default:"2s"`
}

// Load читает YAML-файл, если он есть, а переменные окружения
// перекрывают значения из файла. Пустой путь - только окружение.
func Load(configPath string) (Config, error) {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
		return cfg, cfg.Validate()
	}

	// пробуем файл, если его нет - env
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return cfg, fmt.Errorf("read config %q: %w", configPath, err)
		}
		cfg = Config{}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.LocalPath == "" {
			return errors.New("local store path is required")
		}
	case BackendRemote:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the remote backend")
		}
		if c.Namespace == "" {
			return errors.New("namespace is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("write queue depth must be positive, got %d", c.QueueDepth)
	}
	return nil
}
