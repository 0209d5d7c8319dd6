package interval

import "time"

// Ticker delivers periodic ticks to the engine loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker with the given period.
type TickerFunc func(period time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.t.C
}

func (t timeTicker) Stop() {
	t.t.Stop()
}

// NewTimeTicker is the default TickerFunc backed by time.Ticker.
func NewTimeTicker(period time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(period)}
}
