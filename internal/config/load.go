package config

import (
	"errors"
	"fmt"

	"github.com/rowsift/runtime/pkg/sift"
)

var (
	// ErrParseFailed is returned by Load when the job file cannot be parsed.
	ErrParseFailed = errors.New("job file could not be parsed")
	// ErrValidationFailed is returned by Load when the job file fails the schema.
	ErrValidationFailed = errors.New("job file is invalid")
)

// Load parses, validates, expands and converts the job file at path.
// The Result is returned even on failure so callers can print every error.
func Load(path string) (*sift.Job, *Result, error) {
	result := ParseConfig(path)
	if len(result.ParseErrors) > 0 {
		return nil, result, fmt.Errorf("%w: %s", ErrParseFailed, result.ParseErrors[0].Error())
	}
	if len(result.ValidationErrors) > 0 {
		return nil, result, fmt.Errorf("%w: %d error(s), first: %s",
			ErrValidationFailed, len(result.ValidationErrors), result.ValidationErrors[0].Error())
	}

	job, err := ConvertToJob(ExpandEnv(result.Data))
	if err != nil {
		return nil, result, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return job, result, nil
}
