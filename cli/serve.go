package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"corpanalyst/server"
	"corpanalyst/services"
	"corpanalyst/utils"
)

// shutdownGrace is how long past the drain budget the process may take
// before the watchdog exits it
const shutdownGrace = 5 * time.Second

// exitFunc is replaced in tests
var exitFunc = os.Exit

// serve runs srv, and discord when enabled, until SIGINT or SIGTERM
func serve(parent context.Context, srv *server.Server, shutdownTimeout time.Duration, logger *utils.Logger, discord *services.DiscordService) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	disarm := startWatchdog(ctx, shutdownTimeout+shutdownGrace, logger)
	defer disarm()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if discord != nil && discord.IsEnabled() {
		g.Go(func() error {
			// the relay keeps serving if the bot cannot connect
			if err := discord.Run(gctx); err != nil {
				logger.Error().Err(err).Msg("Discord service stopped")
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, server.ErrForcedShutdown) {
		logger.Error().Err(err).Msg("Shutdown did not complete cleanly")
		return err
	}
	if err != nil {
		return err
	}

	logger.Info().Str("relay", srv.Name()).Msg("Shutdown complete")
	return nil
}

// startWatchdog force-exits the process if shutdown takes longer than limit
// once ctx is done. The returned func disarms it.
func startWatchdog(ctx context.Context, limit time.Duration, logger *utils.Logger) func() {
	done := make(chan struct{})

	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}

		select {
		case <-done:
		case <-time.After(limit):
			logger.Error().Dur("limit", limit).Msg("Forced shutdown after timeout")
			exitFunc(1)
		}
	}()

	return func() { close(done) }
}
