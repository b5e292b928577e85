// Package util holds small helpers shared across packages.
package util

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random identifier such as "tsk_b2kq3..." where the prefix
// names the entity kind. An empty prefix yields the bare random part, used
// for token material.
func NewID(prefix string) string {
	buf := make([]byte, 15)
	_, _ = rand.Read(buf)
	id := strings.ToLower(idEncoding.EncodeToString(buf))
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
