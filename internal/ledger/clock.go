package ledger

import "time"

// Clock supplies the trusted timestamp. Each operation reads it exactly once
// and uses that value throughout.
type Clock interface {
	Now() int64
}

type systemClock struct{}

func (systemClock) Now() int64 { return time.Now().Unix() }

func SystemClock() Clock { return systemClock{} }
