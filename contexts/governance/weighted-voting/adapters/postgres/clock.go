package postgresadapter

import "time"

// SystemClock implements ports.Clock with UTC wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
