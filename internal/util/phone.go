package util

import (
	"regexp"
	"strings"
)

var (
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "/", "")
	mobilePattern   = regexp.MustCompile(`^0[567]\d{8}$`)
	landlinePattern = regexp.MustCompile(`^0[2-4]\d{7}$`)
	arabicDigits    = strings.NewReplacer(
		"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
		"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	)
)

// NormalizePhone returns an Algerian phone number in national format (0XXXXXXXXX).
// International prefixes +213 / 00213 are folded into the leading zero.
func NormalizePhone(raw string) (string, bool) {
	phone := phoneSeparators.Replace(arabicDigits.Replace(strings.TrimSpace(raw)))

	switch {
	case strings.HasPrefix(phone, "+213"):
		phone = "0" + strings.TrimPrefix(phone, "+213")
	case strings.HasPrefix(phone, "00213"):
		phone = "0" + strings.TrimPrefix(phone, "00213")
	case strings.HasPrefix(phone, "213") && len(phone) >= 11:
		phone = "0" + strings.TrimPrefix(phone, "213")
	}

	if mobilePattern.MatchString(phone) || landlinePattern.MatchString(phone) {
		return phone, true
	}
	return "", false
}

// FindPhone scans free text for the first token that normalizes to a phone number.
func FindPhone(text string) (string, bool) {
	if phone, ok := NormalizePhone(text); ok {
		return phone, true
	}
	for _, token := range strings.Fields(arabicDigits.Replace(text)) {
		if phone, ok := NormalizePhone(strings.Trim(token, ",;:!?")); ok {
			return phone, true
		}
	}
	return "", false
}
