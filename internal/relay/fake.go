package relay

import "sync"

// SwitchCall records one backend Set invocation.
type SwitchCall struct {
	Relay int
	On    bool
}

// FakeBackend records switching for test assertions. Also used as the
// backend in safe mode, where the real board must not be driven.
type FakeBackend struct {
	mu     sync.Mutex
	states map[int]bool
	Calls  []SwitchCall
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{states: make(map[int]bool)}
}

func (f *FakeBackend) Set(id int, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[id] = on
	f.Calls = append(f.Calls, SwitchCall{Relay: id, On: on})
}

func (f *FakeBackend) Status(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[id]
}

// SetCount returns how many times the relay was switched to the given
// state.
func (f *FakeBackend) SetCount(id int, on bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.Relay == id && c.On == on {
			n++
		}
	}
	return n
}
