package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	fscli "github.com/Paranoid-AF/fscli"
	"github.com/Paranoid-AF/fscli/esl"
	"github.com/Paranoid-AF/fscli/session"
)

func dialConfig(cfg *fscli.AppConfig) esl.DialConfig {
	return esl.DialConfig{
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Password:    cfg.Password,
		Timeout:     cfg.Timeout,
		TraceFrames: cfg.Debug.TraceFrames(),
	}
}

// dialer opens session connections with the resolved settings.
func dialer(cfg *fscli.AppConfig) session.Dialer {
	return func(ctx context.Context) (session.Conn, error) {
		c, err := esl.Dial(ctx, dialConfig(cfg))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// connect makes the initial connection. With retry on, failures other than
// authentication are retried every cfg.Timeout until ctx ends.
func connect(ctx context.Context, cfg *fscli.AppConfig) (*esl.Client, error) {
	slog.Info("Connecting to FreeSWITCH", "host", cfg.Host, "port", cfg.Port, "user", cfg.User)
	if cfg.Retry {
		slog.Info(fmt.Sprintf("Retry mode enabled - will retry every %d ms", cfg.Timeout.Milliseconds()))
	}

	for {
		c, err := esl.Dial(ctx, dialConfig(cfg))
		if err == nil {
			return c, nil
		}
		var authErr *esl.AuthError
		if !cfg.Retry || errors.As(err, &authErr) {
			return nil, err
		}

		slog.Warn("Connection attempt failed", "error", err)
		slog.Info(fmt.Sprintf("Retrying in %d ms...", cfg.Timeout.Milliseconds()))
		t := time.NewTimer(cfg.Timeout)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
}

// printConnectError explains a failed initial connection with a hint for the
// common causes.
func printConnectError(w io.Writer, cfg *fscli.AppConfig, err error) {
	var authErr *esl.AuthError
	if errors.As(err, &authErr) {
		fmt.Fprintf(w, "Authentication failed: %s\n", authErr.Reason)
		return
	}

	fmt.Fprintf(w, "Failed to connect to FreeSWITCH at %s:%d\n", cfg.Host, cfg.Port)
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		fmt.Fprintf(w, "Connection refused - is FreeSWITCH running and listening on port %d?\n", cfg.Port)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, syscall.ETIMEDOUT),
		errors.As(err, &netErr) && netErr.Timeout():
		fmt.Fprintf(w, "Connection timed out after %d ms\n", cfg.Timeout.Milliseconds())
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}
