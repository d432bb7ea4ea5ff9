package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type VAPIDConfig struct {
	PublicKey  string `mapstructure:"public_key"`
	PrivateKey string `mapstructure:"private_key"`
	Subscriber string `mapstructure:"subscriber"`
	TTL        int    `mapstructure:"ttl"`
}

type Config struct {
	DatabaseURL string      `mapstructure:"database_url"`
	ServerPort  string      `mapstructure:"server_port"`
	JWTSecret   string      `mapstructure:"jwt_secret"`
	VAPID       VAPIDConfig `mapstructure:"vapid"`
}

// Load reads the configuration from a YAML file, with environment variables
// (MAQUINARIA_DATABASE_URL, MAQUINARIA_VAPID_PRIVATE_KEY, ...) taking
// precedence over file values.
func Load() *Config {
	v := viper.New()

	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("maquinaria")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface keys absent from the file, so the
	// deployment-critical ones are bound explicitly.
	for _, key := range []string{
		"database_url", "server_port", "jwt_secret",
		"vapid.public_key", "vapid.private_key", "vapid.subscriber",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading config file: %v", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.VAPID.Subscriber == "" {
		config.VAPID.Subscriber = "mailto:soporte@campodata.co"
	}

	return &config
}
