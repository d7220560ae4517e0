package nanoarch

import (
	"fmt"
	"sync"

	"github.com/retrohost/retrohost/pkg/libretro"
)

// registry finds the session of a core callback.
//
// A session enters the registry on its thread before calling the core
// and leaves after, so callbacks made on that thread resolve to it.
// Callbacks from threads of the core itself resolve to the only
// registered session, or to nothing when there are several.
type registry[T comparable] struct {
	mu       sync.RWMutex
	sessions map[T]struct{}
	threads  map[uintptr]*binding[T]
}

type binding[T comparable] struct {
	s     T
	depth int
}

func newRegistry[T comparable]() *registry[T] {
	return &registry[T]{sessions: make(map[T]struct{}), threads: make(map[uintptr]*binding[T])}
}

func (r *registry[T]) add(s T) {
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	r.mu.Unlock()
}

// remove drops the session with every thread bound to it.
func (r *registry[T]) remove(s T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s)
	for tok, b := range r.threads {
		if b.s == s {
			delete(r.threads, tok)
		}
	}
}

// enter binds the thread to the session.
// The same session may enter again from its callbacks.
func (r *registry[T]) enter(tok uintptr, s T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s]; !ok {
		return fmt.Errorf("%w: closed session", libretro.ErrLifecycle)
	}
	if b, ok := r.threads[tok]; ok {
		if b.s != s {
			return fmt.Errorf("%w: the thread runs another session", libretro.ErrLifecycle)
		}
		b.depth++
		return nil
	}
	r.threads[tok] = &binding[T]{s: s, depth: 1}
	return nil
}

func (r *registry[T]) leave(tok uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.threads[tok]; ok {
		if b.depth--; b.depth <= 0 {
			delete(r.threads, tok)
		}
	}
}

func (r *registry[T]) lookup(tok uintptr) (s T, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, found := r.threads[tok]; found {
		return b.s, true
	}
	if len(r.sessions) == 1 {
		for s = range r.sessions {
			return s, true
		}
	}
	return s, false
}

func (r *registry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
