package enargas

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPlate is returned for identifiers that are not an Argentine
// vehicle plate once normalized.
var ErrInvalidPlate = errors.New("invalid plate")

var (
	// AAA999 (pre-2016) and AA999AA (Mercosur)
	legacyPlate   = regexp.MustCompile(`^[A-Z]{3}[0-9]{3}$`)
	mercosurPlate = regexp.MustCompile(`^[A-Z]{2}[0-9]{3}[A-Z]{2}$`)
)

// NormalizePlate upper-cases s and drops every character outside A-Z and 0-9.
// It is idempotent.
func NormalizePlate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePlate reports whether an already normalized plate is well formed.
func ValidatePlate(plate string) error {
	if legacyPlate.MatchString(plate) || mercosurPlate.MatchString(plate) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPlate, plate)
}

// ParsePlate normalizes a free-form identifier and validates the result.
func ParsePlate(identifier string) (string, error) {
	plate := NormalizePlate(identifier)
	if err := ValidatePlate(plate); err != nil {
		return "", err
	}
	return plate, nil
}

// PDFFilename builds the suggested download name for a plate. Only
// alphanumerics of the plate are kept.
func PDFFilename(plate, suffix string) string {
	name := NormalizePlate(plate)
	if name == "" {
		name = "PATENTE"
	}
	return name + suffix
}
