package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/pricewatcher/internal/notify"
	"sjsage522/pricewatcher/internal/site"
	"sjsage522/pricewatcher/logger"
	"sjsage522/pricewatcher/services/worker"

	"github.com/spf13/cobra"
)

var siteHint string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the background scrape loop",
	RunE:  runWorker,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single scrape pass over every tracked product",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, s *Services) error {
			report, err := s.Tracker.ScrapeAll(ctx)
			if err != nil {
				return err
			}
			if s.Streams != nil {
				if err := s.Streams.TrimStreams(ctx); err != nil {
					s.Journal.LogError("StreamTrimming", err)
				}
			}
			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape one product page and print the extracted price without recording it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hint, err := parseSiteHint()
		if err != nil {
			return err
		}
		return withServices(cmd, func(ctx context.Context, s *Services) error {
			result, err := s.Tracker.ScrapeOne(ctx, args[0], hint)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var trackCmd = &cobra.Command{
	Use:   "track <url>",
	Short: "Start tracking a product and record its current price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hint, err := parseSiteHint()
		if err != nil {
			return err
		}
		return withServices(cmd, func(ctx context.Context, s *Services) error {
			p, err := s.Tracker.Track(ctx, args[0], hint)
			if p.URL != "" {
				if perr := printJSON(cmd.OutOrStdout(), p); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var untrackCmd = &cobra.Command{
	Use:   "untrack <url>",
	Short: "Stop tracking a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, s *Services) error {
			return s.Tracker.Untrack(ctx, args[0])
		})
	},
}

var alertCmd = &cobra.Command{
	Use:   "alert <message>",
	Short: "Send a preformatted message through the configured notifiers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, s *Services) error {
			return sendAlert(ctx, s.Notifier, args[0])
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked products with their price history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, s *Services) error {
			return printJSON(cmd.OutOrStdout(), s.Tracker.Products())
		})
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&siteHint, "site", "", "site of the product page (amazon, flipkart, vijaysales); detected from the URL when empty")
	trackCmd.Flags().StringVar(&siteHint, "site", "", "site of the product page (amazon, flipkart, vijaysales); detected from the URL when empty")
}

func parseSiteHint() (site.ID, error) {
	if siteHint == "" {
		return site.Unknown, nil
	}
	id := site.Parse(siteHint)
	if !site.Known(id) {
		return site.Unknown, fmt.Errorf("unknown site %q", siteHint)
	}
	return id, nil
}

func sendAlert(ctx context.Context, n notify.Notifier, text string) error {
	ts, ok := n.(notify.TextSender)
	if !ok {
		return fmt.Errorf("notifier %T cannot send plain messages", n)
	}
	return ts.SendText(ctx, text)
}

func withServices(cmd *cobra.Command, fn func(ctx context.Context, s *Services) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	return fn(ctx, services)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runWorker(cmd *cobra.Command, args []string) error {
	log := logger.ForWorker()
	log.Info().
		Str("environment", cfg.Environment).
		Dur("scrape_interval", cfg.ScrapeInterval).
		Str("fetcher", cfg.Fetcher).
		Str("store", cfg.StoreBackend).
		Msg("Starting application")

	return withServices(cmd, func(ctx context.Context, s *Services) error {
		w := worker.NewWorker(ctx, s.Tracker, s.Journal, cfg.ScrapeInterval)
		if s.Streams != nil {
			w.WithTrimmer(s.Streams)
		}
		if ts, ok := s.Notifier.(notify.TextSender); ok {
			w.WithAlerter(ts)
		}

		var server *http.Server
		if cfg.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", s.Metrics.Handler())
			server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				log.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("Metrics server stopped")
				}
			}()
		}

		// SIGUSR1 asks for an extra pass
		trigger := make(chan os.Signal, 1)
		signal.Notify(trigger, syscall.SIGUSR1)
		defer signal.Stop(trigger)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-trigger:
					log.Info().Msg("Scrape pass requested")
					w.Trigger()
				}
			}
		}()

		log.Info().Int("products", s.Store.Len()).Msg("Starting price watcher")
		err := w.Start()

		log.Info().Msg("Shutting down gracefully...")
		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := server.Shutdown(shutdownCtx); serr != nil {
				log.Warn().Err(serr).Msg("Metrics server shutdown failed")
			}
		}
		return err
	})
}
