// Package email derives presentation values from email addresses.
package email

import (
	"strings"
	"unicode"
)

// DisplayName builds a provisional contact name from the local part of an
// address, e.g. "sharma.motors@example.com" becomes "Sharma Motors". Returns
// "" when the address has no usable local part.
func DisplayName(address string) string {
	local := strings.TrimSpace(address)
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	// Plus-addressing tags are not part of the name.
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if w := capitalize(p); w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 || !unicode.IsLetter(runes[0]) {
		return string(runes)
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
