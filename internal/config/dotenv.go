package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file. If path is empty,
// it loads from ".env" in the current directory. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	return godotenv.Load(path)
}

// LoadConfig loads configuration from an optional YAML config file, a .env
// file, and environment variables. Later sources override earlier ones:
// defaults, config file, environment (.env values count as environment, but
// already-set variables win because godotenv.Load does not override them).
func LoadConfig(envPath, configPath string) (AppConfig, error) {
	if err := LoadDotEnv(envPath); err != nil {
		return AppConfig{}, err
	}

	envCfg, err := LoadFromEnv()
	if err != nil {
		return AppConfig{}, err
	}

	cfg := NewAppConfig()

	fileCfg, found, err := LoadConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	if found {
		cfg = fileCfg.Apply(cfg)
	}

	return cfg.Apply(envCfg.options()...), nil
}
