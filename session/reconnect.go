package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	fscli "github.com/Paranoid-AF/fscli"
	"github.com/Paranoid-AF/fscli/esl"
)

// DefaultLivenessTimeout is how long a connection may stay silent. The server's
// heartbeat event arrives every 20 seconds.
const DefaultLivenessTimeout = 30 * time.Second

// channelEvents are subscribed when event monitoring is on.
var channelEvents = []string{
	esl.EventChannelCreate,
	esl.EventChannelAnswer,
	esl.EventChannelHangup,
}

// Setup prepares a freshly authenticated connection: event subscription
// (the heartbeat is always included so liveness can be tracked) and the
// server log level unless quiet. A rejected log level is only a warning.
func Setup(ctx context.Context, s esl.Sender, cfg *fscli.AppConfig) error {
	names := []string{esl.EventHeartbeat}
	if cfg.Events {
		names = append(append([]string{}, channelEvents...), esl.EventHeartbeat)
	}
	resp, err := esl.Subscribe(ctx, s, names...)
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("subscribe to events: %s", resp.ReplyText())
	}

	if cfg.Quiet {
		return nil
	}
	if cfg.LogLevel == fscli.LogNoLog {
		resp, err = esl.NoLog(ctx, s)
	} else {
		resp, err = esl.Log(ctx, s, cfg.LogLevel.String())
	}
	if err != nil {
		return fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}
	if !resp.IsSuccess() {
		slog.Warn("Failed to set log level", "level", cfg.LogLevel.String(), "reply", resp.ReplyText())
	}
	return nil
}

// Reconnector re-establishes a lost connection. Attempts are spaced by
// Interval and continue until one succeeds or ctx is cancelled.
type Reconnector struct {
	Dial     Dialer
	Interval time.Duration
	// Setup runs on every new connection before it is handed back. A
	// failure is logged; the connection is still used.
	Setup func(ctx context.Context, c Conn) error
}

// Reconnect dials until it succeeds.
func (r *Reconnector) Reconnect(ctx context.Context) (Conn, error) {
	for attempt := 1; ; attempt++ {
		c, err := r.Dial(ctx)
		if err == nil {
			slog.Info("Reconnected successfully", "attempts", attempt)
			if r.Setup != nil {
				if err := r.Setup(ctx, c); err != nil {
					slog.Warn("connection setup failed after reconnect", "error", err)
				}
			}
			return c, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		slog.Warn("Reconnection attempt failed", "attempt", attempt, "error", err)
		slog.Info(fmt.Sprintf("Retrying in %d ms...", r.Interval.Milliseconds()))

		t := time.NewTimer(r.Interval)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
}
