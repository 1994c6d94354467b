package main

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxNameLen  = 24
	defaultName = "Jugador"
)

// NewPlayerID returns a random UUID v4 string
func NewPlayerID() string {
	return uuid.NewString()
}

// SanitizeName trims whitespace, falls back to the default name and caps
// the length in runes.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultName
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
	}
	return name
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
