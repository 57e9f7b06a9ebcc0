// Package phone normalizes user supplied phone numbers into the canonical
// international form used as the CRM contact identity.
package phone

import (
	"fmt"
	"strings"

	"admissionsbot/internal/domain"
)

// Normalizer turns loosely formatted input into "+<country><local>".
type Normalizer struct {
	countryCode  string
	localLengths map[int]bool
}

func New(countryCode string, localLengths []int) *Normalizer {
	n := &Normalizer{
		countryCode:  strings.TrimPrefix(countryCode, "+"),
		localLengths: make(map[int]bool, len(localLengths)),
	}
	for _, l := range localLengths {
		n.localLengths[l] = true
	}
	return n
}

// Normalize returns the canonical number or an error wrapping
// domain.ErrValidation.
func (n *Normalizer) Normalize(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("%w: empty phone", domain.ErrValidation)
	}

	international := strings.HasPrefix(s, "+")
	if international {
		s = s[1:]
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", fmt.Errorf("%w: unexpected character %q in phone", domain.ErrValidation, r)
		}
	}
	d := digits.String()

	if !international && n.localLengths[len(d)] {
		return "+" + n.countryCode + d, nil
	}

	if strings.HasPrefix(d, n.countryCode) && n.localLengths[len(d)-len(n.countryCode)] {
		return "+" + d, nil
	}

	return "", fmt.Errorf("%w: phone %q has unsupported length or country", domain.ErrValidation, input)
}

// Valid reports whether canonical is already in normalized form.
func (n *Normalizer) Valid(canonical string) bool {
	if !strings.HasPrefix(canonical, "+"+n.countryCode) {
		return false
	}
	rest := canonical[len(n.countryCode)+1:]
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return n.localLengths[len(rest)]
}
