package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vetcare/internal/domain/entity"
	"vetcare/internal/infra/notifier"
	"vetcare/internal/resilience/circuitbreaker"

	"github.com/sony/gobreaker"
)

// providerGuard runs provider calls of one channel through a circuit breaker.
// Only provider-level failures count against the breaker: a rejected
// recipient (4xx) or a disabled provider says nothing about provider health.
type providerGuard struct {
	kind entity.ChannelKind
	cb   *circuitbreaker.CircuitBreaker
}

func newProviderGuard(kind entity.ChannelKind, listeners ...circuitbreaker.StateChangeFunc) *providerGuard {
	label := kind.Label()
	listeners = append([]circuitbreaker.StateChangeFunc{
		func(_ string, _, to gobreaker.State) { SetCircuitBreakerState(label, to) },
	}, listeners...)
	SetCircuitBreakerState(label, gobreaker.StateClosed)
	return &providerGuard{
		kind: kind,
		cb:   circuitbreaker.New(circuitbreaker.ChannelConfig(label), listeners...),
	}
}

// call executes fn through the breaker. An open breaker yields
// ErrCircuitBreakerOpen without calling fn.
func (g *providerGuard) call(fn func() error) error {
	var callErr error
	_, err := g.cb.Execute(func() (interface{}, error) {
		callErr = fn()
		if countsAgainstProvider(callErr) {
			return nil, callErr
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		RecordDropped(g.kind.Label(), "circuit_open")
		return fmt.Errorf("%w: %s", ErrCircuitBreakerOpen, g.kind)
	}
	if err != nil {
		return err
	}
	return callErr
}

func (g *providerGuard) state() gobreaker.State {
	return g.cb.State()
}

func countsAgainstProvider(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *notifier.ClientError
	if errors.As(err, &clientErr) {
		return false
	}
	if errors.Is(err, notifier.ErrDisabled) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// breakerReporter is implemented by channels that guard their provider.
type breakerReporter interface {
	BreakerState() gobreaker.State
}

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Channel            entity.ChannelKind `json:"channel"`
	State              string             `json:"state"`
	CircuitBreakerOpen bool               `json:"circuit_breaker_open"`
}

// channelHealth reports the breaker state of every registered channel.
// Channels without a breaker report "closed".
func channelHealth(r *Registry) []ChannelHealthStatus {
	kinds := r.Kinds()
	statuses := make([]ChannelHealthStatus, 0, len(kinds))
	for _, kind := range kinds {
		ch, _ := r.Lookup(kind)
		state := gobreaker.StateClosed
		if br, ok := ch.(breakerReporter); ok {
			state = br.BreakerState()
		}
		statuses = append(statuses, ChannelHealthStatus{
			Channel:            kind,
			State:              strings.ToLower(state.String()),
			CircuitBreakerOpen: state == gobreaker.StateOpen,
		})
	}
	return statuses
}
