package server

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// label turns a column or group value such as "age_group" or "overweight"
// into display text.
func label(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}
