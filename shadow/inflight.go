package shadow

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Ack is the acknowledgement value delivered to a shadow action callback for
// an ACCEPTED or REJECTED outcome. Exactly one of Document or Code/Message is
// populated, matching the wire schema for */accepted and */rejected bodies.
// Ack is nil for a TIMEOUT outcome.
type Ack struct {
	Document []byte // raw JSON document, present on ACCEPTED
	Code     string // present on REJECTED
	Message  string // present on REJECTED
}

// ShadowCallback is invoked exactly once per in-flight entry, with the
// terminal status (Accepted, Rejected, or Timeout).
type ShadowCallback func(action Action, status StatusCode, ack *Ack, userCtx any)

// inFlightEntry is one occupied slot in the table.
type inFlightEntry struct {
	requestID string
	action    Action
	callback  ShadowCallback
	userCtx   any
	deadline  time.Time
}

// inFlightTable is the fixed-capacity, mutex-protected set of pending
// requests for one client. Capacity is bounded by a counting semaphore, the
// same primitive the wider MQTT ecosystem uses to bound server-facing
// in-flight publishes (golang.org/x/sync/semaphore.Weighted) — insert
// acquires one unit, complete/sweep release it.
type inFlightTable struct {
	mu      sync.Mutex
	entries map[string]*inFlightEntry
	sem     *semaphore.Weighted
	now     func() time.Time
}

func newInFlightTable(capacity int, now func() time.Time) *inFlightTable {
	if now == nil {
		now = time.Now
	}
	return &inFlightTable{
		entries: make(map[string]*inFlightEntry, capacity),
		sem:     semaphore.NewWeighted(int64(capacity)),
		now:     now,
	}
}

// insert reserves a slot for requestID. Returns TooManyInFlight if the table
// is at capacity.
func (t *inFlightTable) insert(requestID string, action Action, cb ShadowCallback, userCtx any, timeout time.Duration) error {
	if !t.sem.TryAcquire(1) {
		return newErr(TooManyInFlight, "in-flight table is full")
	}
	t.mu.Lock()
	t.entries[requestID] = &inFlightEntry{
		requestID: requestID,
		action:    action,
		callback:  cb,
		userCtx:   userCtx,
		deadline:  t.now().Add(timeout),
	}
	t.mu.Unlock()
	return nil
}

// complete locates the occupied slot whose request id matches
// case-insensitively, releases it, and invokes its callback with the given
// terminal status and ack — after the lock has been dropped, so a callback
// that re-enters the engine (e.g. issuing another Update) cannot deadlock
// against this table's mutex.
func (t *inFlightTable) complete(requestID string, status StatusCode, ack *Ack) bool {
	entry := t.popMatching(requestID)
	if entry == nil {
		return false
	}
	entry.callback(entry.action, status, ack, entry.userCtx)
	return true
}

// popMatching removes and returns the entry matching requestID
// case-insensitively, or nil if none is occupied under that id.
func (t *inFlightTable) popMatching(requestID string) *inFlightEntry {
	t.mu.Lock()
	var found *inFlightEntry
	var foundKey string
	if e, ok := t.entries[requestID]; ok {
		found, foundKey = e, requestID
	} else {
		for k, e := range t.entries {
			if strings.EqualFold(k, requestID) {
				found, foundKey = e, k
				break
			}
		}
	}
	if found != nil {
		delete(t.entries, foundKey)
	}
	t.mu.Unlock()
	if found != nil {
		t.sem.Release(1)
	}
	return found
}

// sweep invokes the TIMEOUT callback for every entry whose deadline has
// passed as of now, releasing each slot before firing its callback.
func (t *inFlightTable) sweep(now time.Time) {
	t.mu.Lock()
	var expired []*inFlightEntry
	for k, e := range t.entries {
		if now.After(e.deadline) {
			expired = append(expired, e)
			delete(t.entries, k)
		}
	}
	t.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	t.sem.Release(int64(len(expired)))
	for _, e := range expired {
		e.callback(e.action, Timeout, nil, e.userCtx)
	}
}
