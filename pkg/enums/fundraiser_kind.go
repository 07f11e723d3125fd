package enums

import (
	"fmt"
	"strings"
)

// FundraiserKind identifies the type of campaign the configuration describes.
type FundraiserKind string

const (
	FundraiserKindMulch   FundraiserKind = "mulch"
	FundraiserKindProduct FundraiserKind = "product"
)

var validFundraiserKinds = []FundraiserKind{
	FundraiserKindMulch,
	FundraiserKindProduct,
}

// String implements fmt.Stringer.
func (k FundraiserKind) String() string {
	return string(k)
}

// IsValid reports whether the kind is recognized.
func (k FundraiserKind) IsValid() bool {
	for _, candidate := range validFundraiserKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseFundraiserKind converts a raw string into a FundraiserKind. Blank input means mulch.
func ParseFundraiserKind(value string) (FundraiserKind, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return FundraiserKindMulch, nil
	}
	for _, candidate := range validFundraiserKinds {
		if string(candidate) == trimmed {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fundraiser kind %q", value)
}
