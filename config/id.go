package config

import "github.com/google/uuid"

// randomSuffix generates a short unique token for default consumer ids.
func randomSuffix() string {
	return uuid.NewString()
}
