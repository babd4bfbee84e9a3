package notify

import (
	"context"

	"github.com/jogardn/saleco-docs/internal/circuitbreaker"
)

// GuardedSender skips a channel that keeps failing until its breaker cools
// down, so one dead chat does not cost every submission a timeout.
type GuardedSender struct {
	sender  Sender
	breaker *circuitbreaker.Breaker
}

func NewGuardedSender(sender Sender, breaker *circuitbreaker.Breaker) *GuardedSender {
	return &GuardedSender{
		sender:  sender,
		breaker: breaker,
	}
}

func (g *GuardedSender) Send(ctx context.Context, channelID, message string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.sender.Send(ctx, channelID, message)
	})
}
