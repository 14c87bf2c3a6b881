package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	fscli "github.com/Paranoid-AF/fscli"
	"github.com/Paranoid-AF/fscli/console"
	"github.com/Paranoid-AF/fscli/esl"
	"github.com/Paranoid-AF/fscli/session"
)

// errTerminated is returned when a signal ends an interactive session.
var errTerminated = errors.New("terminated by signal")

func run(cmd *cobra.Command, args []string, o *options) error {
	cfg, err := loadConfig(cmd, args, o)
	if err != nil || cfg == nil {
		return err
	}

	printer := console.Stdout()
	interactive := len(cfg.Execute) == 0
	if interactive {
		setupLogging(cfg.Debug, console.Writer(printer))
	} else {
		setupLogging(cfg.Debug, os.Stderr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	client, err := connect(ctx, cfg)
	if err != nil {
		printConnectError(cmd.ErrOrStderr(), cfg, err)
		return reportedError{err}
	}

	if !interactive {
		return executeCommands(ctx, client, cfg, printer)
	}
	return runInteractive(ctx, client, cfg, printer)
}

func setupLogging(level fscli.DebugLevel, w io.Writer) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level.SlogLevel(),
	})))
}

// executeCommands runs each -x command in order on one connection and stops
// at the first transport failure.
func executeCommands(ctx context.Context, conn session.Conn, cfg *fscli.AppConfig, p console.Printer) error {
	defer disconnect(conn)

	proc := &session.Processor{Printer: p, Color: cfg.Color}
	for _, command := range cfg.Execute {
		if err := proc.Execute(ctx, conn, command); err != nil {
			return fmt.Errorf("%s: %w", command, err)
		}
	}
	return nil
}

func runInteractive(ctx context.Context, client *esl.Client, cfg *fscli.AppConfig, printer *console.SyncPrinter) error {
	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout(cfg))
	err := session.Setup(setupCtx, client, cfg)
	cancel()
	if err != nil {
		client.Close()
		return err
	}
	if cfg.Events {
		printer.Print("Event monitoring enabled")
	}

	err = session.Run(ctx, session.Options{
		Config:  cfg,
		Conn:    client,
		Dial:    dialer(cfg),
		Printer: printer,
	})
	if ctx.Err() != nil {
		return errTerminated
	}
	return err
}

func setupTimeout(cfg *fscli.AppConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return session.DefaultLivenessTimeout
}

func disconnect(conn session.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.Disconnect(ctx); err != nil {
		slog.Debug("disconnect failed", "error", err)
	}
}
