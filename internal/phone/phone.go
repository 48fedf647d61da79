// internal/phone/phone.go
package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is assumed for numbers that arrive without a country code,
// e.g. ten-digit CSV rows.
const DefaultRegion = "US"

// Normalize parses raw into E.164 form ("+15551234567"). Numbers that do not
// parse or have an impossible length are rejected.
func Normalize(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil {
		return "", fmt.Errorf("parse phone %q: %w", raw, err)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", fmt.Errorf("phone %q is not a possible number", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
