package batch

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	phonePattern       = regexp.MustCompile(`^[0-9 +().-]{8,20}$`)
	emailPattern       = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	digitsOnly         = regexp.MustCompile(`\D`)
	studentCodePattern = regexp.MustCompile(`^\d{10}$`)
	dayMonthYear       = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	isoDate            = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// genders is the closed enumeration accepted for the gender field.
var genders = map[string]struct{}{
	"Male":   {},
	"Female": {},
	"Other":  {},
}

// NormSpace trims, converts non-breaking spaces, and collapses internal runs
// of whitespace to single spaces.
func NormSpace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

// TitleCase normalizes a name: whitespace-collapsed, each word with an upper
// first rune and lower remainder. Unicode-aware so diacritics survive.
func TitleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, " ", " "))
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// NormalizeStudentCode strips non-digits and validates the fixed-length code.
func NormalizeStudentCode(s string) (string, error) {
	code := digitsOnly.ReplaceAllString(strings.TrimSpace(s), "")
	if !studentCodePattern.MatchString(code) {
		return "", fmt.Errorf("student code must be exactly 10 digits")
	}
	return code, nil
}

// NormalizeDate accepts dd/mm/yyyy or yyyy-mm-dd and returns the canonical
// yyyy-mm-dd form.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if m := dayMonthYear.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[3], m[2], m[1]), nil
	}
	if isoDate.MatchString(s) {
		return s, nil
	}
	return "", fmt.Errorf("must be dd/mm/yyyy or yyyy-mm-dd")
}

func validatePhone(s string) error {
	if !phonePattern.MatchString(s) {
		return fmt.Errorf("invalid phone number")
	}
	return nil
}

func validateGender(s string) error {
	if _, ok := genders[s]; !ok {
		return fmt.Errorf("must be Male, Female, or Other")
	}
	return nil
}

func validateEmail(s string) error {
	if !emailPattern.MatchString(s) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
