// Package notify implements notification delivery: the channel abstraction,
// the registry of configured channels and the dispatcher that walks a
// notification's channels in priority order until one accepts it.
package notify

import (
	"context"
	"fmt"
	"sort"

	"vetcare/internal/domain/entity"
)

// Channel is one delivery mechanism (chat provider, email, in-app feed).
//
// Contract:
//   - Send reports whether the message was accepted. It never returns an
//     error and must not panic; transport failures are logged and become false.
//   - A missing prerequisite for the recipient (no address, no opt-in) is a
//     silent false, not an error.
//   - Implementations must respect ctx cancellation and be safe for
//     concurrent use.
type Channel interface {
	// Kind returns the channel kind this adapter serves.
	Kind() entity.ChannelKind

	// Send delivers title/body (shaped by meta) to userID.
	Send(ctx context.Context, userID, title, body string, meta entity.Meta) bool
}

// Registry maps channel kinds to their adapters. It is built once at
// start-up and read-only afterwards.
type Registry struct {
	channels map[entity.ChannelKind]Channel
}

// NewRegistry builds a registry from the given adapters. It fails on an
// adapter with an unknown kind or on two adapters for the same kind.
func NewRegistry(channels ...Channel) (*Registry, error) {
	r := &Registry{channels: make(map[entity.ChannelKind]Channel, len(channels))}
	for _, ch := range channels {
		if ch == nil {
			return nil, fmt.Errorf("%w: nil channel", ErrInvalidRegistry)
		}
		kind := ch.Kind()
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown channel kind %q", ErrInvalidRegistry, kind)
		}
		if _, dup := r.channels[kind]; dup {
			return nil, fmt.Errorf("%w: channel %s registered twice", ErrInvalidRegistry, kind)
		}
		r.channels[kind] = ch
	}
	return r, nil
}

// Lookup returns the adapter registered for kind.
func (r *Registry) Lookup(kind entity.ChannelKind) (Channel, bool) {
	ch, ok := r.channels[kind]
	return ch, ok
}

// Kinds returns the registered kinds in a stable order.
func (r *Registry) Kinds() []entity.ChannelKind {
	kinds := make([]entity.ChannelKind, 0, len(r.channels))
	for k := range r.channels {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
