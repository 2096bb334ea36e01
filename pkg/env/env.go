// Package env reads raw process environment values for the few knobs that
// must resolve before config loading, such as the log format.
package env

import "os"

// Get returns the named variable, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
