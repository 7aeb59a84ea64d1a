package whatsapp

import "strings"

// NormalizePhone returns the number in "+<digits>" form. Formatting
// characters are dropped and a missing leading "+" is added.
func NormalizePhone(phone string) string {
	if phone == "" {
		return ""
	}
	digits := DigitsOnly(phone)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// DigitsOnly strips everything but ASCII digits. The Graph API expects
// recipients in this form.
func DigitsOnly(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
