package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/DoyleJ11/werewolf-client/internal/logging"
	"github.com/DoyleJ11/werewolf-client/internal/protocol"
)

type Config struct {
	ServerAddr     string  `env:"WEREWOLF_SERVER_ADDR"`
	Name           string  `env:"WEREWOLF_NAME"`
	DefaultPort    string  `env:"WEREWOLF_DEFAULT_PORT"     envDefault:"5555"`
	DebugAddr      string  `env:"WEREWOLF_DEBUG_ADDR"`
	LogLevel       string  `env:"WEREWOLF_LOG_LEVEL"        envDefault:"info"`
	LogFormat      string  `env:"WEREWOLF_LOG_FORMAT"       envDefault:"console"`
	ReadBuffer     int     `env:"WEREWOLF_READ_BUFFER"      envDefault:"2048"`
	MaxRecordBytes int     `env:"WEREWOLF_MAX_RECORD_BYTES" envDefault:"1048576"`
	InboxSize      int     `env:"WEREWOLF_INBOX_SIZE"       envDefault:"64"`
	ChatRate       float64 `env:"WEREWOLF_CHAT_RATE"        envDefault:"0"` // 0 disables the limit
	ChatBurst      int     `env:"WEREWOLF_CHAT_BURST"       envDefault:"10"`
	LogRetention   int     `env:"WEREWOLF_LOG_RETENTION"    envDefault:"500"`
}

// Load reads the optional dotenv files, then the environment. Files never
// override variables that are already set.
func Load(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.DefaultPort == "":
		return errors.New("default port is empty")
	case c.ReadBuffer <= 0:
		return fmt.Errorf("read buffer must be positive, got %d", c.ReadBuffer)
	case c.MaxRecordBytes <= 0:
		return fmt.Errorf("max record bytes must be positive, got %d", c.MaxRecordBytes)
	case c.InboxSize <= 0:
		return fmt.Errorf("inbox size must be positive, got %d", c.InboxSize)
	case c.ChatRate < 0:
		return fmt.Errorf("chat rate must not be negative, got %v", c.ChatRate)
	case c.ChatRate > 0 && c.ChatBurst <= 0:
		return fmt.Errorf("chat burst must be positive when a chat rate is set, got %d", c.ChatBurst)
	case c.LogRetention < 0:
		return fmt.Errorf("log retention must not be negative, got %d", c.LogRetention)
	}
	switch c.LogFormat {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Defaults is the configuration with every default applied and nothing read
// from the environment.
func Defaults() Config {
	return Config{
		DefaultPort:    protocol.DefaultPort,
		LogLevel:       "info",
		LogFormat:      logging.FormatConsole,
		ReadBuffer:     2048,
		MaxRecordBytes: protocol.DefaultMaxRecordBytes,
		InboxSize:      64,
		ChatRate:       0,
		ChatBurst:      10,
		LogRetention:   500,
	}
}
