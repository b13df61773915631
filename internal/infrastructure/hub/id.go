package hub

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
)

const idSeparator = "_"

// IDGenerator builds connection ids and event ids of the form
// <userKey>_<unixMillis>.
//
// Ids sharing a user key are prefix-filterable by UserPrefix(userKey) and
// compare in issue order as plain strings, as long as the millisecond
// values have the same number of digits. Comparing ids of different users
// is meaningless.
//
// The millisecond part never repeats within a process: when the clock has
// not moved past the last issued value the generator issues last+1.
type IDGenerator struct {
	clock clockwork.Clock
	last  atomic.Int64
}

func NewIDGenerator(clock clockwork.Clock) *IDGenerator {
	return &IDGenerator{clock: clock}
}

// Make returns a fresh id for userKey.
func (g *IDGenerator) Make(userKey string) string {
	now := g.clock.Now().UnixMilli()
	for {
		last := g.last.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if g.last.CompareAndSwap(last, next) {
			return userKey + idSeparator + strconv.FormatInt(next, 10)
		}
	}
}

// UserPrefix is the prefix shared by every id issued for userKey.
func UserPrefix(userKey string) string {
	return userKey + idSeparator
}

// IsNewer reports whether key sorts after lastSeenID.
func IsNewer(key, lastSeenID string) bool {
	return key > lastSeenID
}

// ParseLastEventID validates a client-supplied Last-Event-ID for userKey.
// Anything that is not <userKey>_<digits> yields "", meaning no replay.
func ParseLastEventID(userKey, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || userKey == "" {
		return ""
	}

	millis, ok := strings.CutPrefix(raw, UserPrefix(userKey))
	if !ok || millis == "" {
		return ""
	}
	for _, r := range millis {
		if r < '0' || r > '9' {
			return ""
		}
	}

	return raw
}
