package composite

import (
	"context"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

// Publisher fans one quote out to several publishers (redis cache, websocket
// hub). Nil members are filtered at construction.
type Publisher struct {
	publishers []port.QuotePublisher
}

func NewPublisher(publishers ...port.QuotePublisher) *Publisher {
	out := make([]port.QuotePublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Publisher{publishers: out}
}

func (p *Publisher) PublishQuote(ctx context.Context, quote domain.PriceQuote) {
	for _, pub := range p.publishers {
		pub.PublishQuote(ctx, quote)
	}
}

var _ port.QuotePublisher = (*Publisher)(nil)
