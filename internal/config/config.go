package config

import (
	"log"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration values.
type Config struct {
	Secret           string
	DatabaseDSN      string
	HTTPPort         string
	Env              string
	LogLevel         string
	CORSOrigins      []string
	TreatmentCatalog string
}

// Load reads configuration from environment variables with reasonable defaults.
// A .env file, if present, should already have been loaded into the environment.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("DATABASE_DSN", "consultorio.db")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("TREATMENT_CATALOG", "assets/treatments.csv")

	port := v.GetString("HTTP_PORT")
	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 3000", port)
		port = "3000"
	}

	var origins []string
	for _, origin := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	return Config{
		Secret:           v.GetString("JWT_SECRET"),
		DatabaseDSN:      v.GetString("DATABASE_DSN"),
		HTTPPort:         port,
		Env:              v.GetString("ENV"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		CORSOrigins:      origins,
		TreatmentCatalog: v.GetString("TREATMENT_CATALOG"),
	}
}

// IsProduction reports whether the server runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
