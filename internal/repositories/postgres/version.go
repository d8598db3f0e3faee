package postgres

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

// versionSource hands out ULIDs that sort in creation order, even within one millisecond
type versionSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newVersionSource() *versionSource {
	return &versionSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *versionSource) next(now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
