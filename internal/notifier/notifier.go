// Package notifier runs the chatroom update pipeline: classify the change,
// resolve participants, gather recipient tokens, compose and fan out.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tinywideclouds/go-chatroom-notifier/internal/classify"
	"github.com/tinywideclouds/go-chatroom-notifier/internal/compose"
	"github.com/tinywideclouds/go-chatroom-notifier/internal/fanout"
	"github.com/tinywideclouds/go-chatroom-notifier/internal/participants"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

// Options toggles optional behaviour.
type Options struct {
	// IncludeLegacyTokens adds each recipient profile's fcmToken to the batch.
	IncludeLegacyTokens bool
}

type Notifier struct {
	chatrooms dispatch.ChatroomStore
	resolver  *participants.Resolver
	tokens    dispatch.TokenStore
	composer  *compose.Composer
	fanout    *fanout.Dispatcher
	opts      Options
	logger    *slog.Logger
}

func New(
	chatrooms dispatch.ChatroomStore,
	resolver *participants.Resolver,
	tokens dispatch.TokenStore,
	composer *compose.Composer,
	fanout *fanout.Dispatcher,
	opts Options,
	logger *slog.Logger,
) *Notifier {
	return &Notifier{
		chatrooms: chatrooms,
		resolver:  resolver,
		tokens:    tokens,
		composer:  composer,
		fanout:    fanout,
		opts:      opts,
		logger:    logger.With("component", "Notifier"),
	}
}

// Handle processes one chatroom update. It returns an error only when the
// read stage fails or an emptied chatroom cannot be deleted; delivery and
// cleanup failures are logged. It returns after all cleanup writes settle.
func (n *Notifier) Handle(ctx context.Context, invocationID string, event chatroom.ChangeEvent) error {
	log := n.logger.With("chatroom_id", event.ChatroomID, "invocation_id", invocationID)

	outcome := classify.Classify(event.Before, event.After)
	switch outcome.Kind {
	case classify.Deleted:
		log.Info("Chatroom deleted.")
		return nil
	case classify.Emptied:
		if err := n.chatrooms.DeleteChatroom(ctx, event.ChatroomID); err != nil {
			log.Error("Failed to remove empty chatroom", "err", err)
			return fmt.Errorf("delete empty chatroom %s: %w", event.ChatroomID, err)
		}
		log.Info("Removed chatroom because nobody is there.")
		return nil
	case classify.NoMessages, classify.MetadataOnly:
		log.Info("Chatroom info changed.", "outcome", outcome.Kind.String())
		return nil
	}

	msg := outcome.Message
	log.Info("We have a new message.", "sender_id", msg.UID)

	profiles, err := n.resolver.Resolve(ctx, event.After.Users)
	if err != nil {
		log.Error("Failed to resolve participants", "err", err)
		return fmt.Errorf("resolve participants: %w", err)
	}

	targets, err := n.collectTargets(ctx, profiles, msg.UID, log)
	if err != nil {
		log.Error("Failed to fetch device tokens", "err", err)
		return err
	}

	var sender *chatroom.UserProfile
	if p, ok := profiles[msg.UID]; ok {
		sender = &p
	}
	payload := n.composer.Compose(sender, msg, event.ChatroomID)

	report, err := n.fanout.Dispatch(ctx, targets, payload)
	if err != nil {
		// A failed send is not retried.
		log.Error("Notification dispatch failed", "err", err)
		return nil
	}
	if len(report.Results) > 0 {
		log.Info("Notifications dispatched", "receipt", report.String())
	}
	return nil
}

// collectTargets fetches the token records of every resolved participant
// except the sender and flattens them into dispatch targets.
func (n *Notifier) collectTargets(ctx context.Context, profiles map[string]chatroom.UserProfile, senderID string, log *slog.Logger) ([]fanout.Target, error) {
	candidates := make([]string, 0, len(profiles))
	for id := range profiles {
		if id != senderID {
			candidates = append(candidates, id)
		}
	}
	sort.Strings(candidates)

	records := make([]*chatroom.TokenRecord, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range candidates {
		g.Go(func() error {
			rec, err := n.tokens.GetTokens(gctx, id)
			if errors.Is(err, dispatch.ErrMalformedRecord) {
				log.Warn("Skipping malformed token record", "user_id", id, "err", err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w: tokens for %s: %w", dispatch.ErrSourceUnavailable, id, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var targets []fanout.Target
	for i, id := range candidates {
		for _, token := range records[i].List() {
			targets = append(targets, fanout.Target{Token: token, Owner: id})
		}
		if n.opts.IncludeLegacyTokens {
			if p := profiles[id]; p.FCMToken != "" {
				targets = append(targets, fanout.Target{Token: p.FCMToken, Owner: id, Legacy: true, OwnerRef: p.Ref})
			}
		}
	}
	return targets, nil
}
