package ports

import "time"

// Clock da la hora actual; se inyecta para poder controlar el tiempo en tests.
type Clock interface {
	Now() time.Time
}
