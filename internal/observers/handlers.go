package observers

import (
	"context"

	"github.com/smartselect/shortlist/internal/events"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

// Handler reacts to one decoded event.
type Handler func(ctx context.Context, ev events.Event)

// NewAllHandlers aggregates the per-topic log handlers.
func NewAllHandlers() map[string]Handler {
	return map[string]Handler{
		events.TopicSessionChanged:  newSessionHandler(),
		events.TopicQueryTransition: newQueryHandler(),
		events.TopicCatalogUpdated:  newCatalogHandler(),
		events.TopicWishlistChanged: newWishlistHandler(),
	}
}

func newSessionHandler() Handler {
	return func(_ context.Context, ev events.Event) {
		var p events.SessionChanged
		if err := ev.DecodePayload(&p); err != nil {
			logx.Warn().Err(err).Uint64("seq", ev.Seq).Msg("undecodable session event")
			return
		}
		logx.Debug().Uint64("seq", ev.Seq).Bool("authenticated", p.Authenticated).
			Str("user_id", p.UserID).Msg("[session] changed")
	}
}

func newQueryHandler() Handler {
	return func(_ context.Context, ev events.Event) {
		var p events.QueryTransition
		if err := ev.DecodePayload(&p); err != nil {
			logx.Warn().Err(err).Uint64("seq", ev.Seq).Msg("undecodable query event")
			return
		}
		e := logx.Debug().Uint64("seq", ev.Seq).Str("from", string(p.From)).Str("phase", string(p.To))
		if p.Error != "" {
			e = e.Str("error", p.Error)
		}
		e.Str("label", p.ResultLabel).Msg("[query] transition")
	}
}

func newCatalogHandler() Handler {
	return func(_ context.Context, ev events.Event) {
		var p events.CatalogUpdated
		if err := ev.DecodePayload(&p); err != nil {
			logx.Warn().Err(err).Uint64("seq", ev.Seq).Msg("undecodable catalog event")
			return
		}
		logx.Debug().Uint64("seq", ev.Seq).Str("status", p.Status).Int("items", p.Count).
			Uint64("generation", p.Generation).Msg("[catalog] updated")
	}
}

func newWishlistHandler() Handler {
	return func(_ context.Context, ev events.Event) {
		var p events.WishlistChanged
		if err := ev.DecodePayload(&p); err != nil {
			logx.Warn().Err(err).Uint64("seq", ev.Seq).Msg("undecodable wishlist event")
			return
		}
		logx.Debug().Uint64("seq", ev.Seq).Strs("models", p.Models).Msg("[wishlist] changed")
	}
}
