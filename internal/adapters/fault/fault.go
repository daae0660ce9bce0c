package fault

import (
	"math/rand"
	"sync"
)

// Never implementa ports.FaultInjector sin fallar nunca (default de producción).
type Never struct{}

// ShouldFail siempre devuelve false.
func (Never) ShouldFail() bool { return false }

// Seeded falla con probabilidad rate usando una fuente determinista.
// Misma seed → misma secuencia de fallos, útil para reproducir tests.
type Seeded struct {
	mu   sync.Mutex
	rate float64
	rnd  *rand.Rand
}

// NewSeeded crea un injector con la tasa de fallo dada (0-1).
func NewSeeded(rate float64, seed int64) *Seeded {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &Seeded{rate: rate, rnd: rand.New(rand.NewSource(seed))}
}

// ShouldFail devuelve true con probabilidad rate.
func (s *Seeded) ShouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64() < s.rate
}

// Script falla según una secuencia fija; después de agotarla no falla más.
type Script struct {
	mu    sync.Mutex
	fails []bool
}

// NewScript crea un injector que devuelve fails en orden.
func NewScript(fails ...bool) *Script {
	return &Script{fails: fails}
}

// ShouldFail consume el siguiente valor del script.
func (s *Script) ShouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fails) == 0 {
		return false
	}
	f := s.fails[0]
	s.fails = s.fails[1:]
	return f
}
