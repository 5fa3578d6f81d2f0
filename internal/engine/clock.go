package engine

import "time"

// Clock supplies the current time in seconds.
//
// The engine reads it once per entry point. Waiting becomes Ready lazily:
// nothing runs when time passes, the next query or execute simply sees a
// later reading.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock as Unix seconds.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// FixedClock always reads the same instant. The CLI uses it for --now.
type FixedClock uint64

// Now implements Clock.
func (c FixedClock) Now() uint64 {
	return uint64(c)
}
