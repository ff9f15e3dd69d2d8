package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ashedge "github.com/Borislavv/go-ash-edge"
	"github.com/Borislavv/go-ash-edge/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "ashedge",
		Short:        "Predictive edge cache tier",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "ashedge.yaml", "path to the yaml config")

	root.AddCommand(
		newRunCmd(&configPath),
		newValidateCmd(&configPath),
		newCycleCmd(&configPath),
		newModeCmd(&configPath),
	)
	return root
}

func load(cmd *cobra.Command, path string) (*config.Tier, *slog.Logger, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	return cfg, logger, nil
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the edge tier with scheduled decision cycles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(cmd, *configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			edge, err := ashedge.New(ctx, cfg, logger, ashedge.Deps{})
			if err != nil {
				return err
			}
			defer func() { _ = edge.Close() }()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return edge.Run(gctx) })
			if cfg.Metrics.Enabled() && cfg.Metrics.Addr != "" {
				g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Addr, logger) })
			}
			err = g.Wait()
			for _, c := range edge.Comparisons() {
				logger.Info("experiment comparison",
					"reference", c.Reference.Experiment.ID,
					"candidate", c.Candidate.Experiment.ID,
					"reference_hit_ratio", c.Reference.HitRatio,
					"candidate_hit_ratio", c.Candidate.HitRatio,
					"hit_ratio_gain_pp", c.HitRatioGain,
					"latency_reduction", c.LatencyReduction,
				)
			}
			return err
		},
	}
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	logger.Info("metrics listener is running", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			var capacity int64
			for _, e := range cfg.Edges {
				capacity += e.Capacity
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "config ok: %d edges, total capacity %d, %d catalog items, origin %s, predictive %t\n",
				len(cfg.Edges), capacity, len(cfg.Catalog), cfg.Origin.Kind, cfg.Experiment.Predictive)
			return err
		},
	}
}

func newCycleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run a single decision cycle and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(cmd, *configPath)
			if err != nil {
				return err
			}
			edge, err := ashedge.New(cmd.Context(), cfg, logger, ashedge.Deps{})
			if err != nil {
				return err
			}
			defer func() { _ = edge.Close() }()

			out := edge.RunCycle(cmd.Context())
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "status=%s mode=%s decisions=%d\n", out.Status, out.Mode, len(out.Results))
			for _, r := range out.Results {
				result := "applied"
				if r.Err != nil {
					result = "failed: " + r.Err.Error()
				}
				fmt.Fprintf(w, "  %s %s\n", r.Decision, result)
			}
			return out.Err
		},
	}
}

func newModeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "mode [predictive|baseline]",
		Short:     "Show or set the experiment mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"predictive", "baseline"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd, *configPath)
			if err != nil {
				return err
			}
			edge, err := ashedge.New(cmd.Context(), cfg, logger, ashedge.Deps{})
			if err != nil {
				return err
			}
			defer func() { _ = edge.Close() }()

			mode, err := edge.Mode(cmd.Context())
			if len(args) == 1 {
				switch args[0] {
				case "predictive", "baseline":
					mode, err = edge.SetPredictive(cmd.Context(), args[0] == "predictive")
				default:
					return fmt.Errorf("unknown mode %q", args[0])
				}
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s since %s\n", mode, mode.ActivatedAt.Format(time.RFC3339))
			return err
		},
	}
}
