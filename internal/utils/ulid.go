package utils

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID mints an opaque, lexicographically sortable identifier. Used for
// quiz/question ids and onboarding session ids.
func NewULID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
