package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort        string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL     string `env:"DATABASE_URL"`
	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	JWTSecret       string `env:"JWT_SECRET,required"`
	JWTAccessTTLMin int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	IdentityBaseURL string `env:"IDENTITY_BASE_URL"`
	IdentityAPIKey  string `env:"IDENTITY_API_KEY"`

	MaxMessageLength  int `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
	HistoryPageLimit  int `env:"HISTORY_PAGE_LIMIT" envDefault:"50"`
	InboxPageLimit    int `env:"INBOX_PAGE_LIMIT" envDefault:"20"`
	ViewUpdateRetries int `env:"VIEW_UPDATE_RETRIES" envDefault:"5"`
	// ReconcileIntervalSeconds en 0 desactiva la pasada de reconciliacion.
	ReconcileIntervalSeconds int `env:"RECONCILE_INTERVAL_SECONDS" envDefault:"60"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
