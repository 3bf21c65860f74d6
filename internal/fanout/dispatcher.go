// Package fanout sends one payload to a batch of device tokens and reconciles
// the token store with the per-token delivery results.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

// Target is one device token together with the user who owns it.
type Target struct {
	Token string
	Owner string
	// Legacy targets come from a profile's single-token field and are
	// cleaned up on the profile rather than on the token record.
	Legacy   bool
	OwnerRef chatroom.UserRef
}

// Report summarises one dispatch.
type Report struct {
	Results         []dispatch.DeliveryResult
	Removed         int
	CleanupFailures int
}

func (r Report) String() string {
	ok := 0
	for _, res := range r.Results {
		if res.Ok() {
			ok++
		}
	}
	return fmt.Sprintf("success:%d failed:%d removed:%d cleanup_failed:%d",
		ok, len(r.Results)-ok, r.Removed, r.CleanupFailures)
}

type Dispatcher struct {
	transport dispatch.Transport
	tokens    dispatch.TokenStore
	profiles  dispatch.ProfileStore
	logger    *slog.Logger
}

// NewDispatcher wires the transport and the stores used for cleanup.
// profiles is only needed when legacy targets are dispatched.
func NewDispatcher(transport dispatch.Transport, tokens dispatch.TokenStore, profiles dispatch.ProfileStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		tokens:    tokens,
		profiles:  profiles,
		logger:    logger.With("component", "FanoutDispatcher"),
	}
}

// Dispatch makes exactly one SendBatch call covering every distinct token and
// removes the tokens the transport proved stale. It returns once every cleanup
// write has settled. Cleanup failures are logged and counted, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []Target, payload dispatch.NotificationPayload) (Report, error) {
	targets = dedupe(targets)
	if len(targets) == 0 {
		d.logger.Info("There are no notification tokens to send to.")
		return Report{}, nil
	}

	tokens := make([]string, len(targets))
	for i, t := range targets {
		tokens[i] = t.Token
	}
	d.logger.Info("Sending notifications", "token_count", len(tokens))

	results, err := d.transport.SendBatch(ctx, tokens, payload)
	if err != nil {
		return Report{}, fmt.Errorf("send batch: %w", err)
	}
	if len(results) != len(tokens) {
		return Report{}, fmt.Errorf("transport returned %d results for %d tokens", len(results), len(tokens))
	}

	var (
		wg       sync.WaitGroup
		removed  atomic.Int32
		failures atomic.Int32
	)
	for i, res := range results {
		if res.Ok() {
			continue
		}
		target := targets[i]
		d.logger.Error("Failure sending notification",
			"user_id", target.Owner, "kind", string(res.Failure), "err", res.Err)
		if !res.Stale() {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.cleanup(ctx, target); err != nil {
				failures.Add(1)
				d.logger.Warn("Failed to remove stale token", "user_id", target.Owner, "legacy", target.Legacy, "err", err)
				return
			}
			removed.Add(1)
		}()
	}
	wg.Wait()

	return Report{
		Results:         results,
		Removed:         int(removed.Load()),
		CleanupFailures: int(failures.Load()),
	}, nil
}

func (d *Dispatcher) cleanup(ctx context.Context, t Target) error {
	if t.Legacy {
		if d.profiles == nil {
			return fmt.Errorf("no profile store for legacy token of %s", t.Owner)
		}
		return d.profiles.ClearLegacyToken(ctx, t.OwnerRef, t.Token)
	}
	return d.tokens.RemoveToken(ctx, t.Owner, t.Token)
}

// dedupe drops repeated token strings, keeping the first owner.
func dedupe(targets []Target) []Target {
	seen := make(map[string]struct{}, len(targets))
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Token == "" {
			continue
		}
		if _, ok := seen[t.Token]; ok {
			continue
		}
		seen[t.Token] = struct{}{}
		out = append(out, t)
	}
	return out
}
