package clock

import "time"

// Clock supplies the current time to components that stamp records.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant. Useful in tests.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}
