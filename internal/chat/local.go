package chat

import (
	"fmt"
	"sync/atomic"
	"time"
)

// localIDPrefix marks ids minted for the local feed. Live ids are UUIDs, so
// the two can never collide.
const localIDPrefix = "local-"

type localIDs struct {
	seq atomic.Uint64
	now func() time.Time
}

func newLocalIDs(now func() time.Time) *localIDs {
	return &localIDs{now: now}
}

// Next returns an id unique within the process.
func (g *localIDs) Next() string {
	return fmt.Sprintf("%s%d-%d", localIDPrefix, g.now().UnixNano(), g.seq.Add(1))
}
