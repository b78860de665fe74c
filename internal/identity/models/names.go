package models

import (
	"strings"
	"unicode"
)

const fallbackName = "User"

// NamesFromEmail derives a display name from the local part of an address:
// "jane.doe@x" becomes ("Jane", "Doe"). A single-word local part gets the
// fallback last name.
func NamesFromEmail(address string) (first, last string) {
	local, _, _ := strings.Cut(address, "@")
	words := strings.FieldsFunc(local, func(r rune) bool {
		return strings.ContainsRune("._-+", r)
	})
	switch len(words) {
	case 0:
		return fallbackName, fallbackName
	case 1:
		return titleCase(words[0]), fallbackName
	default:
		return titleCase(words[0]), titleCase(words[len(words)-1])
	}
}

func titleCase(word string) string {
	r := []rune(word)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
