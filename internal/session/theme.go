package session

import (
	"encoding/json"
	"fmt"
)

// Theme is the display preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DefaultTheme is used when no preference was persisted.
const DefaultTheme = ThemeLight

// Toggle flips between light and dark.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// MarshalTheme serializes the theme as a JSON string.
func MarshalTheme(t Theme) ([]byte, error) {
	return json.Marshal(string(t))
}

// UnmarshalTheme parses a JSON string theme. Empty input yields the default.
func UnmarshalTheme(data []byte) (Theme, error) {
	if len(data) == 0 {
		return DefaultTheme, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("failed to unmarshal theme: %w", err)
	}
	return ParseTheme(s)
}
