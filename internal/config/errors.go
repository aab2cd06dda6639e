package config

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes reported by Load and Validate.
const (
	ErrCodeRead      = "E201" // config file unreadable
	ErrCodeSyntax    = "E202" // CUE syntax or schema violation
	ErrCodeSetting   = "E203" // invalid settings value
	ErrCodeTypeAlias = "E204" // type alias target unknown
	ErrCodeMapper    = "E205" // mapper pattern invalid or unmatched
	ErrCodeNoMappers = "E206" // no mapper patterns
)

// ConfigError is a configuration problem, positioned in the CUE source
// when the position is known.
type ConfigError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Field, e.Message)
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// fromCUE converts a CUE error into ConfigErrors, one per reported problem.
func fromCUE(code string, err error) []error {
	var out []error
	for _, e := range cueerrors.Errors(err) {
		ce := &ConfigError{Code: code, Field: "cue", Message: e.Error()}
		if positions := cueerrors.Positions(e); len(positions) > 0 {
			ce.Pos = positions[0]
		}
		out = append(out, ce)
	}
	if len(out) == 0 {
		out = append(out, &ConfigError{Code: code, Field: "cue", Message: err.Error()})
	}
	return out
}
