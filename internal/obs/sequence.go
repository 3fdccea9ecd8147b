package obs

import "sync/atomic"

// SequenceGenerator hands out increasing ids, used to tell connections of the same room apart in logs.
type SequenceGenerator struct {
	next uint64
}

// Next returns the next id, starting at 1.
func (g *SequenceGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}
