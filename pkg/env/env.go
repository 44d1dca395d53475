package env

import "os"

// Get reads an environment variable, falling back to a default when the
// variable is unset or empty. Used for knobs that sit outside the DROPSHIP_
// envconfig sections, like GOOSE_DRIVER in the migrate binary.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
