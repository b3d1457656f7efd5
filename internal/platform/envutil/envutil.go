package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/cartledger/internal/platform/logger"
)

// String returns the value of name, or def when it is unset. Values of
// variables whose name marks a secret (DSN, password, token) are redacted in
// the debug log.
func String(name, def string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", name)
	}
	val, ok := os.LookupEnv(name)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", logger.Redact(name, def))
		}
		return def
	}
	if log != nil {
		log.Debug("Environment variable found, using environment", "value", logger.Redact(name, val))
	}
	return val
}

func Int(name string, def int, log *logger.Logger) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as int, using default", "env_var", name, "providedVal", logger.Redact(name, v), "defaultVal", def, "error", err)
		}
		return def
	}
	return i
}

func Bool(name string, def bool, log *logger.Logger) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		if log != nil {
			log.Debug("Environment variable could not be parsed as bool, using default", "env_var", name, "providedVal", logger.Redact(name, v), "defaultVal", def)
		}
		return def
	}
}

func Duration(name string, def time.Duration, log *logger.Logger) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as duration, using default", "env_var", name, "providedVal", logger.Redact(name, v), "defaultVal", def, "error", err)
		}
		return def
	}
	return d
}
