package chain

import (
	"sync/atomic"
)

// Clock is the block-height source. Height is monotonically non-decreasing;
// the cron runner ticks it once per configured block interval.
type Clock struct {
	height atomic.Int64
}

func NewClock(start int64) *Clock {
	c := &Clock{}
	c.height.Store(start)
	return c
}

func (c *Clock) Height() int64 {
	return c.height.Load()
}

func (c *Clock) Tick() int64 {
	return c.height.Add(1)
}
