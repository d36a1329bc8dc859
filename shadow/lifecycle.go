package shadow

import (
	"log/slog"
	"sync"
	"time"
)

// housekeeper lifecycle: a single process-wide instance, started lazily by
// the first Client to Connect and stopped by Fini. This mirrors the
// reference library's explicit init()/fini() pair while keeping New/Connect
// usable without requiring callers to remember to call Init first.
var (
	hkOnce   sync.Once
	finiOnce sync.Once
	hk       *housekeeper
)

// ensureHousekeeper starts the process-wide housekeeper on first call. The
// interval and clock supplied by the first caller win; later callers'
// settings are ignored, since there is only ever one housekeeper. Tests that
// care about the sweep interval or clock should be the first (and typically
// only) Client to Connect in the process.
func ensureHousekeeper(interval time.Duration, now func() time.Time) {
	hkOnce.Do(func() {
		hk = newHousekeeper(defaultRegistry, interval, now, slog.Default())
		hk.start()
	})
}

// Fini cancels the process-wide housekeeper and blocks until its current
// sweep iteration (if any) completes. Safe to call even if no Client has
// connected yet.
func Fini() {
	finiOnce.Do(func() {
		if hk != nil {
			hk.stop()
		}
	})
}
