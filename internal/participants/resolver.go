// Package participants resolves a chatroom's user references to profiles.
package participants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

type Resolver struct {
	store  dispatch.ProfileStore
	logger *slog.Logger
}

func NewResolver(store dispatch.ProfileStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With("component", "ParticipantResolver"),
	}
}

// Resolve fetches every referenced profile concurrently and indexes them by
// document id. A reference to a missing or undecodable document is skipped. Any other
// failure fails the whole resolution with dispatch.ErrSourceUnavailable.
func (r *Resolver) Resolve(ctx context.Context, refs []chatroom.UserRef) (map[string]chatroom.UserProfile, error) {
	fetched := make([]*chatroom.UserProfile, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			p, err := r.store.GetProfile(gctx, ref)
			if errors.Is(err, dispatch.ErrNotFound) {
				r.logger.Warn("Participant profile missing; skipping", "ref", ref)
				return nil
			}
			if errors.Is(err, dispatch.ErrMalformedRecord) {
				r.logger.Warn("Participant profile unreadable; skipping", "ref", ref, "err", err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w: profile %s: %w", dispatch.ErrSourceUnavailable, ref, err)
			}
			fetched[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profiles := make(map[string]chatroom.UserProfile, len(refs))
	for _, p := range fetched {
		if p == nil {
			continue
		}
		r.logger.Debug("Resolved participant", "user_id", p.ID)
		profiles[p.ID] = *p
	}
	return profiles, nil
}
