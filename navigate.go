package limsclient

import "sync"

// NavigateOptions mirrors the options a host router accepts: Replace swaps
// the current history entry instead of pushing, State carries router state.
type NavigateOptions struct {
	Replace bool
	State   map[string]any
}

// Navigator is the late-bound view-transition callback a host registers so
// non-interactive code (the 401 path, forced logout) can change views
// without depending on the host's routing machinery.
type Navigator interface {
	Navigate(path string, opts NavigateOptions) error
}

// NavigatorFunc adapts a function to the [Navigator] interface.
type NavigatorFunc func(path string, opts NavigateOptions) error

// Navigate describes the navigate operation and its observable behavior.
//
// Navigate may return an error when input validation or dependency calls fail.
func (f NavigatorFunc) Navigate(path string, opts NavigateOptions) error {
	return f(path, opts)
}

// Fallback is the hard-redirect analog used when no navigator is registered
// or the registered one fails.
type Fallback func(path string)

// Bridge decouples the client from the host's routing implementation. Hosts
// register exactly one navigator per active view-tree mount and unregister
// on unmount so a stale router is never invoked; the last registration wins.
type Bridge struct {
	mu       sync.Mutex
	nav      Navigator
	fallback Fallback
	onFall   func(path string)
}

func newBridge(fallback Fallback, onFall func(path string)) *Bridge {
	return &Bridge{
		fallback: fallback,
		onFall:   onFall,
	}
}

// Register describes the register operation and its observable behavior.
//
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Bridge) Register(nav Navigator) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.nav = nav
	b.mu.Unlock()
}

// Unregister describes the unregister operation and its observable behavior.
//
// Unregister does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Bridge) Unregister() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.nav = nil
	b.mu.Unlock()
}

// IsAvailable describes the isavailable operation and its observable behavior.
//
// IsAvailable does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Bridge) IsAvailable() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nav != nil
}

// Request asks the host to move to path. Any error or panic from the
// registered navigator is swallowed and the hard-redirect fallback takes
// over; with no navigator registered the fallback runs directly. Request
// never fails — navigation is fire-and-forget from the client's side.
func (b *Bridge) Request(path string, opts NavigateOptions) {
	if b == nil {
		return
	}

	b.mu.Lock()
	nav := b.nav
	b.mu.Unlock()

	if nav != nil && b.invoke(nav, path, opts) {
		return
	}

	if b.onFall != nil {
		b.onFall(path)
	}
	if b.fallback != nil {
		b.fallback(path)
	}
}

func (b *Bridge) invoke(nav Navigator, path string, opts NavigateOptions) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return nav.Navigate(path, opts) == nil
}
