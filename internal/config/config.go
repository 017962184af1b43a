package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env:"LISTEN_BIND_IP" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env:"LISTEN_PORT" env-default:"8080"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"true"`
	Host     string `yaml:"host" env:"MONGO_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	User     string `yaml:"user" env:"MONGO_USER" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"qrpass"`
}

// DirectoryConfig points at the existing organization/session directory
// database. The service only reads from it; disabled means scope ids are
// trusted as-is at issuance.
type DirectoryConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	HostName string `yaml:"host" env:"DIRECTORY_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"DIRECTORY_PORT" env-default:"3306"`
	UserName string `yaml:"user" env:"DIRECTORY_USER" env-default:""`
	Password string `yaml:"password" env:"DIRECTORY_PASSWORD" env-default:""`
	Database string `yaml:"database" env:"DIRECTORY_DATABASE" env-default:""`
	Prefix   string `yaml:"prefix" env-default:""`
}

// TokenConfig holds QR payload signing and issuance policy defaults.
type TokenConfig struct {
	Secret               string  `yaml:"secret" env:"TOKEN_SECRET" env-default:""`
	Issuer               string  `yaml:"issuer" env-default:"qrpass"`
	DefaultValidityHours float64 `yaml:"default_validity_hours" env-default:"1"`
	SingleActivePerScope bool    `yaml:"single_active_per_scope" env-default:"true"`
	DuplicatePolicy      string  `yaml:"duplicate_policy" env-default:"per_token"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" env-default:"false"`
	ApiKey  string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	ChatId  int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID" env-default:"0"`
}

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	Listen    Listen          `yaml:"listen"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Directory DirectoryConfig `yaml:"directory"`
	Token     TokenConfig     `yaml:"token"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
