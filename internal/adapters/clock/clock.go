package clock

import (
	"sync"
	"time"
)

// System implementa ports.Clock con la hora real en UTC.
type System struct{}

// Now devuelve time.Now() en UTC.
func (System) Now() time.Time { return time.Now().UTC() }

// Fake es un reloj manual para tests y simulaciones.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake crea un reloj parado en start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start.UTC()}
}

// Now devuelve la hora simulada.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance mueve el reloj hacia adelante.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set fija la hora simulada.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}
