package db

import "strings"

// IsUniqueViolation reports whether err is a Postgres unique violation.
// Pass a constraint name to match a specific index, such as the one-record
// per order-and-supplier constraint the fulfillment repo leans on.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}
