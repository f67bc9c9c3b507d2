package printcfg

import "sync"

// State is the live in-memory config document shared between the HTTP
// handlers and the status aggregator. A successful save replaces it
// wholesale; readers always get a complete copy.
type State struct {
	mu  sync.RWMutex
	cfg Config
}

// NewState wraps an initial document.
func NewState(cfg Config) *State {
	return &State{cfg: cfg}
}

// Get returns the current document.
func (s *State) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the document.
func (s *State) Set(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// AirPrintAutoEnable reports whether automatic AirPrint advertisement is on.
func (s *State) AirPrintAutoEnable() bool {
	return s.Get().AirPrint.AutoEnable
}
