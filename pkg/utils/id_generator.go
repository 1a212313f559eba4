// Package utils provides helpers shared by the server and the tools.
//
// Go Learning Note — "pkg/" Directory Convention:
// Code under pkg/ is intended to be importable by external projects (unlike
// internal/ which is compiler-enforced private). This is a community convention,
// not a Go language feature.
package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a random (v4) UUID string, used to tag requests in logs.
//
// Go Learning Note — "github.com/google/uuid":
// uuid.New() creates a v4 UUID like "550e8400-e29b-41d4-a716-446655440000".
// It needs no coordination between processes, so every server instance can
// mint ids on its own.
func GenerateID() string {
	return uuid.New().String()
}

// IsID reports whether s is a well-formed UUID in canonical form.
func IsID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
