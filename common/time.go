package common

import "time"

// Clock abstracts the millisecond timestamp source. Dispute phases are
// evaluated lazily against it, there are no background timers.
type Clock interface {
	NowMilli() int64
}

type systemClock struct{}

func (systemClock) NowMilli() int64 {
	return time.Now().UnixMilli()
}

func SystemClock() Clock {
	return systemClock{}
}

// MockClock is a manually advanced clock for tests.
type MockClock struct {
	Milli int64
}

func (c *MockClock) NowMilli() int64 { return c.Milli }

func (c *MockClock) Advance(d time.Duration) {
	c.Milli += d.Milliseconds()
}
