package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so signing is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// Document stages used in blob names.
const (
	StageArtistSigned = "artist_signed"
	StageFullySigned  = "fully_signed"
)

// blobNamer issues document names with a millisecond suffix that strictly
// increases within the process, so two signs never share a name.
type blobNamer struct {
	mu    sync.Mutex
	clock Clock
	last  int64
}

func (n *blobNamer) Name(contractID, stage string) string {
	ms := n.clock.Now().UnixMilli()

	n.mu.Lock()
	if ms <= n.last {
		ms = n.last + 1
	}
	n.last = ms
	n.mu.Unlock()

	return fmt.Sprintf("contract_%s_%s_%d.pdf", contractID, stage, ms)
}
