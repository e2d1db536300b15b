package ai

import (
	"context"

	"cooperative-ai/backend/pkg/resilience"
)

type breakerGateway struct {
	next Gateway
	cb   *resilience.CircuitBreaker
}

// WithBreaker fails fast with resilience.ErrCircuitOpen while the provider
// keeps failing
func WithBreaker(next Gateway, cb *resilience.CircuitBreaker) Gateway {
	return &breakerGateway{next: next, cb: cb}
}

func (g *breakerGateway) Complete(ctx context.Context, transcript []string) (string, error) {
	var reply string
	err := g.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		reply, err = g.next.Complete(ctx, transcript)
		return err
	})
	return reply, err
}
