package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type ServerConfig struct {
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	Port             string `yaml:"port,omitempty"` // e.g. ":8080"
	Domain           string `yaml:"domain,omitempty"`
	DatabasePath     string `yaml:"database_path,omitempty"`
	JWTSecret        string `yaml:"jwt_secret,omitempty"`
	SessionTTLDays   int    `yaml:"session_ttl_days,omitempty"`
	MaxMessageLength int    `yaml:"max_message_length,omitempty"`
	MaxAvatarSize    int64  `yaml:"max_avatar_size,omitempty"` // MB in the file, bytes after load
}

var Conf ServerConfig

func LoadConfig(path string) {
	f, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	yaml.Unmarshal(f, &Conf)

	// Environment wins over the file for the signing secret
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		Conf.JWTSecret = secret
	}
	if Conf.JWTSecret == "" {
		panic("jwt_secret must be set in config.yaml or JWT_SECRET")
	}

	if Conf.Port == "" {
		Conf.Port = ":8080"
	}
	if Conf.DatabasePath == "" {
		Conf.DatabasePath = "data/harbor.db"
	}
	if Conf.SessionTTLDays == 0 {
		Conf.SessionTTLDays = 30
	}
	if Conf.MaxMessageLength == 0 {
		Conf.MaxMessageLength = 4000
	}
	if Conf.MaxAvatarSize == 0 {
		Conf.MaxAvatarSize = 5
	}
	// Convert MB to bytes for internal use
	Conf.MaxAvatarSize = Conf.MaxAvatarSize * 1024 * 1024
}

func SessionTTL() time.Duration {
	return time.Duration(Conf.SessionTTLDays) * 24 * time.Hour
}

// SaveConfig saves the current configuration to file
func SaveConfig(path string) error {
	configCopy := Conf
	configCopy.MaxAvatarSize = configCopy.MaxAvatarSize / (1024 * 1024)

	data, err := yaml.Marshal(&configCopy)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
