package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	DaemonPort  int    `mapstructure:"daemon_port"`
	DBPath      string `mapstructure:"db_path"`
	CopyTool    string `mapstructure:"copy_tool"`
	TickSeconds int    `mapstructure:"tick_seconds"`
}

var Default = Config{
	DaemonPort:  9733,
	DBPath:      "robosync.db",
	CopyTool:    "robocopy",
	TickSeconds: 60,
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".robosync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("daemon_port", Default.DaemonPort)
	viper.SetDefault("db_path", Default.DBPath)
	viper.SetDefault("copy_tool", Default.CopyTool)
	viper.SetDefault("tick_seconds", Default.TickSeconds)

	viper.SetEnvPrefix("ROBOSYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
