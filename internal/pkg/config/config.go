package config

import (
	"io"
	"time"
)

// TimeConfig defines helpers for retrieving duration values stored as integers.
type TimeConfig interface {
	// GetMillisecond reads an integer value as milliseconds.
	GetMillisecond(key string) time.Duration
	// GetSecond reads an integer value as seconds.
	GetSecond(key string) time.Duration
	// GetMinute reads an integer value as minutes.
	GetMinute(key string) time.Duration
}

// Config defines a set of methods for retrieving configuration values of various types.
//
// Missing keys yield the zero value of the requested type unless a default
// was registered for them.
type Config interface {
	io.Closer
	TimeConfig

	GetBool(key string) bool
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetFloat64(key string) float64
	GetString(key string) string

	// GetBinary decodes a base64 encoded value.
	GetBinary(key string) []byte

	// GetArray returns the non-empty trimmed elements of a list value.
	// Both YAML sequences and "a,b,c" strings are accepted.
	GetArray(key string) []string

	// GetLocation resolves an IANA zone name, falling back to time.Local.
	GetLocation(key string) *time.Location
}
