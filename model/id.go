package model

import (
	"github.com/pborman/uuid"
)

// NewID produces a unique identifier suitable for any resource created by
// the server.
func NewID() string {
	return uuid.New()
}
