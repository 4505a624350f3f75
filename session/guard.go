package session

import "sync"

// TurnGuard tracks which sessions have a turn in flight.
type TurnGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewTurnGuard() *TurnGuard {
	return &TurnGuard{inFlight: make(map[string]struct{})}
}

// TryAcquire marks the session busy. It returns a release func and true, or
// nil and false if a turn is already running for that session.
func (g *TurnGuard) TryAcquire(sessionID string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[sessionID]; busy {
		return nil, false
	}
	g.inFlight[sessionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, sessionID)
			g.mu.Unlock()
		})
	}, true
}
