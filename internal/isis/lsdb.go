package isis

import (
	"sync"
	"time"

	"github.com/zebra-rs/zebra-rs/internal/isisproto"
)

// lspEntry is one stored copy in a level's LSDB: the decoded LSP plus
// its re-encoded wire bytes (cached so flooding/PSNP response doesn't
// re-encode on every send) and purge-window bookkeeping.
type lspEntry struct {
	lsp       isisproto.LSP
	raw       []byte
	purging   bool
	purgedAt  time.Time
}

func (e *lspEntry) key() string { return e.lsp.ID.String() }

// LSDB is one level's link-state database (spec.md §3's per-level LSDB).
type LSDB struct {
	mu      sync.Mutex
	Level   int
	entries map[string]*lspEntry
}

func NewLSDB(level int) *LSDB {
	return &LSDB{Level: level, entries: map[string]*lspEntry{}}
}

func (d *LSDB) Get(key string) (isisproto.LSP, []byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key]
	if !ok {
		return isisproto.LSP{}, nil, false
	}
	return e.lsp, e.raw, true
}

// All returns every stored LSP (including ones mid-purge, whose
// remaining-lifetime is already zero).
func (d *LSDB) All() []isisproto.LSP {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]isisproto.LSP, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e.lsp)
	}
	return out
}

// Install compares lsp against any existing copy by sequence number
// (ISO/IEC 10589 §7.3.15.1, higher wins). Returns installed=false for a
// same-or-older copy so the caller can apply the SRM/SSN clearing rule
// spec.md §4.5 Flooding describes instead of installing.
func (d *LSDB) Install(lsp isisproto.LSP, raw []byte) (installed bool, newer bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := lsp.ID.String()
	existing, ok := d.entries[key]
	if !ok || lsp.Sequence > existing.lsp.Sequence {
		d.entries[key] = &lspEntry{lsp: lsp, raw: raw}
		return true, true
	}
	if lsp.Sequence == existing.lsp.Sequence {
		return false, false
	}
	return false, false // strictly older copy received
}

// MarkPurge zeroes an entry's remaining lifetime and starts its purge
// window, used both for self-initiated purge (spec.md §4.5 "On purge...")
// and for a received LSP whose lifetime is already zero.
func (d *LSDB) MarkPurge(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key]
	if !ok || e.purging {
		return
	}
	e.lsp.RemainingLifetime = 0
	e.purging = true
	e.purgedAt = time.Now()
}

// AgeTick decrements every non-purging entry's remaining lifetime by one
// second; entries reaching zero enter their purge window, and entries
// whose purge window has elapsed are removed. Returns the keys that
// newly entered purge (to reflood once) and the keys removed.
func (d *LSDB) AgeTick() (newlyPurged []string, removed []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for key, e := range d.entries {
		if e.purging {
			if now.Sub(e.purgedAt) > PurgeWindow {
				delete(d.entries, key)
				removed = append(removed, key)
			}
			continue
		}
		if e.lsp.RemainingLifetime > 0 {
			e.lsp.RemainingLifetime--
		}
		if e.lsp.RemainingLifetime == 0 {
			e.purging = true
			e.purgedAt = now
			newlyPurged = append(newlyPurged, key)
		}
	}
	return newlyPurged, removed
}
