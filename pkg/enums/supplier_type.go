package enums

import (
	"fmt"
	"strings"
)

// SupplierType identifies which connector talks to a supplier's API.
type SupplierType string

const (
	SupplierTypeTemu       SupplierType = "temu"
	SupplierTypeAliExpress SupplierType = "aliexpress"
	SupplierTypeAmazon     SupplierType = "amazon"
)

var validSupplierTypes = []SupplierType{
	SupplierTypeTemu,
	SupplierTypeAliExpress,
	SupplierTypeAmazon,
}

func (s SupplierType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SupplierType.
func (s SupplierType) IsValid() bool {
	for _, candidate := range validSupplierTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSupplierType converts raw input into a SupplierType. Matching is
// case-insensitive because supplier rows are operator-entered.
func ParseSupplierType(value string) (SupplierType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validSupplierTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid supplier type %q", value)
}
