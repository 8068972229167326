package uid

import "github.com/google/uuid"

// UUID generates time-ordered (v7) UUID strings, used for correlation ids.
type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

// Generate falls back to a random v4 id when v7 generation fails.
func (*UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
