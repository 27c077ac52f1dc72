package observe

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "MEMO_"

// LoadConfig builds a Config from the environment.
//
// Each file in files is loaded with godotenv before parsing; variables that
// are already set in the process environment win over file values. The
// result is validated before it is returned.
//
// Recognised variables (all prefixed with MEMO_):
//
//	SERVICE_NAME, VERSION
//	TRACING_ENABLED, TRACING_EXPORTER, TRACING_SAMPLE_PCT
//	METRICS_ENABLED, METRICS_EXPORTER
//	LOG_ENABLED, LOG_LEVEL
func LoadConfig(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrLoadEnv, err)
		}
	}

	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadEnv, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
