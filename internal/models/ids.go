package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the primary key is still empty.
func ensureID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
