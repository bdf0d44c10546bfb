package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a time-sortable id used for message and correlation ids.
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// RobotID builds the default robot identity for an aisle, e.g. "produce-1f3a9c2e".
func RobotID(aisle string) string {
	prefix := strings.ToLower(strings.Join(strings.Fields(aisle), "-"))
	if prefix == "" {
		prefix = "robot"
	}
	return prefix + "-" + uuid.NewString()[:8]
}
