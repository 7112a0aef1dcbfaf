package models

import (
	"time"
)

// Signed access token handed to a principal
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}
