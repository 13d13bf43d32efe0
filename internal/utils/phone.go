package utils

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// PhoneMatchDigits is how many trailing digits two numbers must share to be
// considered the same contact. Tolerates missing country/area codes.
const PhoneMatchDigits = 8

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

// PhoneSuffix returns the trailing PhoneMatchDigits digits of phone, or all of
// its digits when it is shorter.
func PhoneSuffix(phone string) string {
	digits := DigitsOnly(phone)
	if len(digits) > PhoneMatchDigits {
		return digits[len(digits)-PhoneMatchDigits:]
	}
	return digits
}

// SamePhone compares two numbers by their trailing digits. Empty numbers never match.
func SamePhone(a, b string) bool {
	sa, sb := PhoneSuffix(a), PhoneSuffix(b)
	return sa != "" && sa == sb
}

// ParseJID builds the user JID for a phone number. Brazilian numbers typed
// without the country code (10 or 11 digits) get 55 prepended.
func ParseJID(recipient string) (types.JID, error) {
	digits := DigitsOnly(recipient)
	if len(digits) == 11 || len(digits) == 10 {
		digits = "55" + digits
	}
	return types.ParseJID(digits + "@" + types.DefaultUserServer)
}
