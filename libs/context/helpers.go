package context

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// GetLogger - return the logger under the zerolog context key, or an error if absent
func GetLogger(ctx context.Context) (*zerolog.Logger, error) {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		return nil, ErrNotInContext
	}
	return logger, nil
}

// GetStringFromContext - given a CTXKey return the string value from the context if it exists
func GetStringFromContext(ctx context.Context, key CTXKey) (string, error) {
	v := ctx.Value(key)
	if v == nil {
		return "", ErrNotInContext
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrValueWrongType
	}
	return s, nil
}

// GetBoolFromContext - given a CTXKey return the bool value from the context if it exists
func GetBoolFromContext(ctx context.Context, key CTXKey) (bool, error) {
	v := ctx.Value(key)
	if v == nil {
		return false, ErrNotInContext
	}
	b, ok := v.(bool)
	if !ok {
		return false, ErrValueWrongType
	}
	return b, nil
}

// GetDurationFromContext - given a CTXKey return the duration value from the context if it exists
func GetDurationFromContext(ctx context.Context, key CTXKey) (time.Duration, error) {
	v := ctx.Value(key)
	if v == nil {
		return 0, ErrNotInContext
	}
	d, ok := v.(time.Duration)
	if !ok {
		return 0, ErrValueWrongType
	}
	return d, nil
}

// GetLogLevelFromContext - given a CTXKey return the log level from the context,
// accepting either a zerolog.Level or its string form. Defaults to info.
func GetLogLevelFromContext(ctx context.Context, key CTXKey) (zerolog.Level, error) {
	v := ctx.Value(key)
	if v == nil {
		return zerolog.InfoLevel, ErrNotInContext
	}
	switch lvl := v.(type) {
	case zerolog.Level:
		return lvl, nil
	case string:
		parsed, err := zerolog.ParseLevel(lvl)
		if err != nil {
			return zerolog.InfoLevel, err
		}
		return parsed, nil
	default:
		return zerolog.InfoLevel, ErrValueWrongType
	}
}
