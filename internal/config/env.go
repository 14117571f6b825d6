package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/joho/godotenv"

	"github.com/rowsift/runtime/internal/logger"
)

// DefaultEnvFile is loaded when no --env-file is given.
const DefaultEnvFile = ".env"

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadEnvFile loads variables from path into the process environment.
// Variables already set are not overridden. A missing DefaultEnvFile is
// ignored; any other missing file is an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if path == DefaultEnvFile && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	logger.Debug("env file loaded", "path", path)
	return nil
}

// ExpandEnv replaces ${VAR} references in every string value of data.
// Unset variables are left as written and logged.
func ExpandEnv(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out, _ := expandValue(data).(map[string]interface{})
	return out
}

func expandValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return expandString(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = expandValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = expandValue(item)
		}
		return out
	default:
		return v
	}
}

func expandString(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[2 : len(ref)-1]
		value, ok := os.LookupEnv(name)
		if !ok {
			logger.Warn("environment variable not set", "variable", name)
			return ref
		}
		return value
	})
}
