package utils

// Deduplicator tracks the restaurant URLs already admitted during a run.
// It is owned by a single goroutine and does no locking.
type Deduplicator struct {
	seen map[string]struct{}
}

// NewDeduplicator creates an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Admit returns true if url was not seen before and records it, false if it
// is a repeat.
func (d *Deduplicator) Admit(url string) bool {
	if _, exists := d.seen[url]; exists {
		return false
	}
	d.seen[url] = struct{}{}
	return true
}

// Size returns the number of unique URLs admitted.
func (d *Deduplicator) Size() int {
	return len(d.seen)
}
