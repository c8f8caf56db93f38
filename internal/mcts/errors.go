package mcts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig matches every *ConfigError with errors.Is.
var ErrInvalidConfig = errors.New("invalid search configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field" msgpack:"field" yaml:"field"`
	Message string `json:"message" msgpack:"message" yaml:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ConfigError is returned before a search starts when the engine configuration
// or the problem definition is unusable. Values are never clamped.
type ConfigError struct {
	Errors ValidationErrors
}

func (e *ConfigError) Error() string {
	return ErrInvalidConfig.Error() + ": " + e.Errors.Error()
}

func (e *ConfigError) Unwrap() error { return e.Errors }

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

func configError(errs ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return &ConfigError{Errors: errs}
}
