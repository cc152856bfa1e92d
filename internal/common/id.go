package common

import (
	"github.com/google/uuid"
)

// NewServerID generates a unique server registration ID with the "srv_" prefix
// Format: srv_<uuid>
func NewServerID() string {
	return "srv_" + uuid.New().String()
}
