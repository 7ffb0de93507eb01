package track

import (
	"sync"

	"github.com/statetrail/statetrail/internal/interval"
)

// keyedMutex provides mutual exclusion scoped to one (subject, domain)
// stream. Observations on different streams never contend. Entries are kept
// for the life of the process; the population is bounded by the number of
// tracked streams.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the stream's mutex and returns the unlock func.
func (k *keyedMutex) lock(subject string, domain interval.Domain) func() {
	key := subject + "\x00" + string(domain)

	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
