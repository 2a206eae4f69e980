package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// dotEnvPath is read before environment overrides are applied; a missing file is not an error.
var dotEnvPath = ".env"

// applyEnv overlays environment variables on cfg. Variable names follow the deployment
// conventions of the service (HOST, PORT, MODEL_PATH, ...), not the YAML keys.
func applyEnv(cfg *Config) error {
	if err := godotenv.Load(dotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", dotEnvPath, err)
	}

	v := viper.New()
	for _, key := range []string{
		"HOST", "PORT", "DEBUG",
		"API_PREFIX",
		"ALLOWED_ORIGINS",
		"MODEL_PATH", "MODEL_NAME", "FALLBACK_MODEL", "INFERENCE_URL", "DEVICE",
		"MAX_TEXT_LENGTH", "MAX_OUTPUT_LENGTH", "DEFAULT_NUM_BEAMS",
		"MODEL_LOAD_TIMEOUT", "MODEL_REQUEST_TIMEOUT",
		"RATE_LIMIT_PER_MINUTE",
		"REDIS_URL", "CACHE_TTL",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setString(v, "HOST", &cfg.Server.Host)
	setInt(v, "PORT", &cfg.Server.Port)
	if v.IsSet("DEBUG") {
		cfg.Server.Debug = v.GetBool("DEBUG")
	}

	setString(v, "API_PREFIX", &cfg.API.Prefix)

	if v.IsSet("ALLOWED_ORIGINS") {
		origins, err := parseList(v.GetString("ALLOWED_ORIGINS"))
		if err != nil {
			return fmt.Errorf("parse ALLOWED_ORIGINS: %w", err)
		}
		cfg.CORS.AllowedOrigins = origins
	}

	setString(v, "MODEL_PATH", &cfg.Model.Path)
	setString(v, "MODEL_NAME", &cfg.Model.Name)
	setString(v, "FALLBACK_MODEL", &cfg.Model.Fallback)
	setString(v, "INFERENCE_URL", &cfg.Model.InferenceURL)
	setString(v, "DEVICE", &cfg.Model.Device)
	setInt(v, "MAX_TEXT_LENGTH", &cfg.Model.MaxTextLength)
	setInt(v, "MAX_OUTPUT_LENGTH", &cfg.Model.MaxOutputLength)
	setInt(v, "DEFAULT_NUM_BEAMS", &cfg.Model.DefaultNumBeams)
	if v.IsSet("MODEL_LOAD_TIMEOUT") {
		cfg.Model.LoadTimeout = v.GetDuration("MODEL_LOAD_TIMEOUT")
	}
	if v.IsSet("MODEL_REQUEST_TIMEOUT") {
		cfg.Model.RequestTimeout = v.GetDuration("MODEL_REQUEST_TIMEOUT")
	}

	setInt(v, "RATE_LIMIT_PER_MINUTE", &cfg.RateLimit.PerMinute)

	setString(v, "REDIS_URL", &cfg.Cache.RedisURL)
	if v.IsSet("CACHE_TTL") {
		cfg.Cache.TTL = v.GetDuration("CACHE_TTL")
	}

	setString(v, "LOG_LEVEL", &cfg.Logging.Level)
	setString(v, "LOG_FORMAT", &cfg.Logging.Format)
	setString(v, "LOG_FILE", &cfg.Logging.File)

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	return nil
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

// parseList accepts either a JSON array or a comma separated list.
func parseList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
