// =============================================================================
// Rural Credit Season Pipeline - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which starts the HTTP API. The
// table is loaded once (at startup with --preload, otherwise on the first
// request) and kept in memory until POST /api/reload.
//
// SHUTDOWN:
//   SIGINT or SIGTERM stops accepting connections and waits up to
//   server.shutdown_timeout for in-flight requests.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/loader"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/season"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/server"
)

var (
	serveAddr    string
	servePreload bool
)

// serveCmd represents the 'serve' command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the evolution and market-share outputs over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from the config)")
	serveCmd.Flags().BoolVar(&servePreload, "preload", true, "Load the partitions before accepting requests")
}

func runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(ctx, cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	memo := loader.NewMemo(p.loader, p.cfg.Seasons)
	if servePreload {
		_, rep := memo.Get(ctx)
		if rep.AllFailed() {
			p.log.Warn().Str("run_id", rep.RunID).Msg("no partition loaded; serving empty results until reload")
		}
	}

	addr := p.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	api := server.New(memo, season.NewCyclicOrder(p.cfg.SeasonStartMonth), p.log, p.metrics)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Routes(),
		ReadTimeout:  p.cfg.Server.ReadTimeout,
		WriteTimeout: p.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		p.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	p.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), p.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
