package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyText is wrapped by InputError when a message has no text.
var ErrEmptyText = errors.New("message text is empty")

// InputError reports a message that cannot be classified.
type InputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return e.Err }

// NewEmptyTextError builds the InputError returned for blank text.
func NewEmptyTextError() *InputError {
	return &InputError{Field: "text", Reason: ErrEmptyText.Error(), Err: ErrEmptyText}
}

// ConfigError reports an unusable configuration or pattern registry.
type ConfigError struct {
	Source string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Source != "" {
		msg += " in " + e.Source
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ModelLoadError reports a missing, corrupt or version-mismatched artifact.
type ModelLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ModelLoadError) Error() string {
	msg := fmt.Sprintf("load model %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// UnseenLabelError is returned when a label is absent from a frozen encoding.
type UnseenLabelError struct {
	Target string
	Label  string
}

func (e *UnseenLabelError) Error() string {
	return fmt.Sprintf("label %q was not seen when training target %s", e.Label, e.Target)
}

// TrainingDataError reports a training corpus that cannot be used.
type TrainingDataError struct {
	Missing []string
	Reason  string
}

func (e *TrainingDataError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("training data: missing columns %s", strings.Join(e.Missing, ", "))
	}
	return "training data: " + e.Reason
}
