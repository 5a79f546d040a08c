package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/swapx/internal/grpc"
	"github.com/LeJamon/swapx/internal/identity"
	"github.com/LeJamon/swapx/internal/log"
	"github.com/LeJamon/swapx/internal/rpc"
)

// serveCmd starts the daemon. It is also the default command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the swapx daemon",
	Long: `Start swapxd, which provides:
- HTTP JSON-RPC API on server.http_addr
- WebSocket event stream on /ws
- gRPC service swapx.Ledger on server.grpc_addr
- Health check and Prometheus metrics endpoints`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = runServe
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close storage")
		}
	}()

	resolver, err := identity.NewResolver(cfg.Identity.Mode)
	if err != nil {
		return err
	}
	rpcCfg := rpc.Config{
		Ledger:       a.ledger,
		Identity:     resolver,
		Events:       a.bus,
		Metrics:      a.metrics,
		Timeout:      cfg.Server.RequestTimeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       log.Component(logger, "rpc"),
	}
	if a.journal != nil {
		rpcCfg.History = a.journal
	}
	rs, err := rpc.NewServer(rpcCfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.HTTPAddr != "" {
		g.Go(func() error { return rs.Run(gctx, cfg.Server.HTTPAddr) })
	}
	if cfg.Server.GRPCAddr != "" {
		grpcCfg := grpc.DefaultServerConfig()
		grpcCfg.Address = cfg.Server.GRPCAddr
		gs, err := grpc.NewServer(grpcCfg, rs, log.Component(logger, "grpc"))
		if err != nil {
			return err
		}
		g.Go(func() error { return gs.Run(gctx) })
	}

	logger.Info().
		Str("storage", cfg.Storage.Backend).
		Str("oracle", cfg.Oracle.Kind).
		Str("treasury", cfg.Treasury.Kind).
		Str("identity", cfg.Identity.Mode).
		Uint64("sequence", a.ledger.Sequence()).
		Msg("swapxd started")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("swapxd stopped")
	return nil
}
