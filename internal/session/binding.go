package session

import (
	"context"
	"sync"

	"github.com/apricopt/zoro-web/internal/cli/client"
)

// Source is what a Binding reads from and acts on. *Manager implements it.
type Source interface {
	State() State
	Subscribe(fn Listener) (unsubscribe func())
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, data client.RegisterRequest) error
	Logout(ctx context.Context)
	RefreshUser(ctx context.Context) error
	RedirectToDesktop()
}

// Binding mirrors the session into one view's local state. Each view binds
// on its own; bindings never share a subscription or a mirror.
type Binding struct {
	source      Source
	onChange    func(State)
	unsubscribe func()
	changed     chan struct{}

	mu       sync.RWMutex
	current  State
	received bool
	closed   bool
}

// Bind takes the current snapshot for the first render and subscribes for
// the lifetime of the binding. onChange (optional) runs after each mirrored update.
func Bind(source Source, onChange func(State)) *Binding {
	b := &Binding{
		source:   source,
		onChange: onChange,
		// Buffered so a publish never waits on a slow view
		changed: make(chan struct{}, 1),
	}

	// Subscribe before the first read so no publish falls in between. The
	// snapshot is taken only if no notification has arrived yet.
	b.mu.Lock()
	b.unsubscribe = source.Subscribe(b.receive)
	if !b.received {
		b.current = source.State()
	}
	b.mu.Unlock()

	return b
}

func (b *Binding) receive(s State) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.current = s
	b.received = true
	b.mu.Unlock()

	select {
	case b.changed <- struct{}{}:
	default:
	}

	if b.onChange != nil {
		b.onChange(s)
	}
}

// Current returns the mirrored snapshot
func (b *Binding) Current() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Changed signals that the mirror was replaced. Signals coalesce, read Current
// after receiving.
func (b *Binding) Changed() <-chan struct{} {
	return b.changed
}

// Close unsubscribes. Further publishes are not mirrored.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.unsubscribe()
}

func (b *Binding) Login(ctx context.Context, email, password string) error {
	return b.source.Login(ctx, email, password)
}

func (b *Binding) Register(ctx context.Context, data client.RegisterRequest) error {
	return b.source.Register(ctx, data)
}

func (b *Binding) Logout(ctx context.Context) {
	b.source.Logout(ctx)
}

func (b *Binding) RefreshUser(ctx context.Context) error {
	return b.source.RefreshUser(ctx)
}

func (b *Binding) RedirectToDesktop() {
	b.source.RedirectToDesktop()
}
