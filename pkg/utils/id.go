package utils

import "github.com/google/uuid"

// NewID generates a new UUID v4 string
func NewID() string {
	return uuid.New().String()
}

// IsValidID checks if a string is a valid UUID
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
