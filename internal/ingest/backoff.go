package ingest

import "time"

// Backoff produces the reconnect delay sequence: floor, 2*floor, 4*floor...
// capped at max, reset to floor after a successful subscribe.
type Backoff struct {
	Floor time.Duration
	Max   time.Duration

	cur time.Duration
}

// Next returns the delay to wait before the upcoming attempt and advances
// the sequence.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.Floor
	}
	d := b.cur
	if next := b.cur * 2; next < b.Max {
		b.cur = next
	} else {
		b.cur = b.Max
	}
	return d
}

// Reset returns the sequence to its floor value.
func (b *Backoff) Reset() {
	b.cur = 0
}
