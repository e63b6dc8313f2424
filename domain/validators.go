package domain

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	mobilePhonePattern = regexp.MustCompile(`^05\d{8}$`)
	emailPattern       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	expiryPattern      = regexp.MustCompile(`^(\d{2})/(\d{2})$`)
)

// NormalizePhone strips every non-digit character
func NormalizePhone(phone string) string {
	return digitsOnly(phone)
}

// IsValidPhone reports whether phone has exactly 10 digits and the 05 mobile prefix
func IsValidPhone(phone string) bool {
	return mobilePhonePattern.MatchString(NormalizePhone(phone))
}

// IsValidName requires at least two characters after trimming
func IsValidName(name string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(name)) >= 2
}

// IsValidEmail checks the basic local@domain.tld shape
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// IsValidNationalID validates a 9 digit Israeli id number with its check digit
func IsValidNationalID(id string) bool {
	id = strings.TrimSpace(id)
	if len(id) != 9 || digitsOnly(id) != id {
		return false
	}
	sum := 0
	for i, r := range id {
		d := int(r-'0') * ((i % 2) + 1)
		if d > 9 {
			d -= 9
		}
		sum += d
	}
	return sum%10 == 0
}

// ValidateDonor checks the details form; the first failing field is reported
func ValidateDonor(d Donor, requireID bool) error {
	switch {
	case !IsValidName(d.FirstName):
		return NewValidationError("first_name", ErrInvalidFirstName)
	case !IsValidName(d.LastName):
		return NewValidationError("last_name", ErrInvalidLastName)
	case !IsValidPhone(d.Phone):
		return NewValidationError("phone", ErrInvalidPhone)
	}
	if d.NationalID != "" || requireID {
		if !IsValidNationalID(d.NationalID) {
			return NewValidationError("national_id", ErrInvalidNationalID)
		}
	}
	if d.Email != "" && !IsValidEmail(d.Email) {
		return NewValidationError("email", ErrInvalidEmail)
	}
	return nil
}

// ValidateCard checks manually typed or NFC read card data.
// NFC reads carry neither CVV nor national id.
func ValidateCard(c SensitiveCardData, nfc bool) error {
	if len(c.CardNumber) != 16 || digitsOnly(c.CardNumber) != c.CardNumber {
		return NewValidationError("card_number", ErrInvalidCardNumber)
	}
	if !nfc && !IsValidName(c.CardHolder) {
		return NewValidationError("card_holder", ErrInvalidCardHolder)
	}
	if !isValidExpiry(c.ExpiryMMYY) {
		return NewValidationError("expiry", ErrInvalidExpiry)
	}
	if nfc {
		return nil
	}
	if len(c.CVV) != 3 || digitsOnly(c.CVV) != c.CVV {
		return NewValidationError("cvv", ErrInvalidCVV)
	}
	if !IsValidNationalID(c.NationalID) {
		return NewValidationError("national_id", ErrInvalidNationalID)
	}
	return nil
}

// ParseAmount reads a custom amount typed on the keypad
func ParseAmount(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return 0, NewValidationError("amount", ErrInvalidAmount)
	}
	return n, nil
}

// ParseMonths reads the recurrence picker value: a month count or "unlimited"
func ParseMonths(value string) (Recurrence, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "unlimited") {
		return Recurrence{Unlimited: true}, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < MinRecurringMonths || n > MaxRecurringMonths {
		return Recurrence{}, NewValidationError("months", ErrInvalidMonths)
	}
	return Recurrence{Months: n}, nil
}

// IsValidCodeDigit accepts a single decimal digit
func IsValidCodeDigit(d string) bool {
	return len(d) == 1 && d[0] >= '0' && d[0] <= '9'
}

// IsValidCode accepts exactly six decimal digits
func IsValidCode(code string) bool {
	return len(code) == 6 && digitsOnly(code) == code
}

func isValidExpiry(v string) bool {
	m := expiryPattern.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return false
	}
	month, _ := strconv.Atoi(m[1])
	return month >= 1 && month <= 12
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
