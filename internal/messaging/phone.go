package messaging

import (
	"regexp"
	"strings"
)

var phoneDigitsRe = regexp.MustCompile(`\d+`)

func sanitizePhone(value string) string {
	if value == "" {
		return ""
	}
	return strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
}

// MaskPhone keeps the last four digits for logging.
func MaskPhone(value string) string {
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	if len(digits) <= 4 {
		return "***" + digits
	}
	return "***" + digits[len(digits)-4:]
}
