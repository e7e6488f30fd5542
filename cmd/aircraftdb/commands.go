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

	"github.com/Sternrassler/aircraftdb/pkg/batch"
	"github.com/Sternrassler/aircraftdb/pkg/config"
	"github.com/Sternrassler/aircraftdb/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var (
		configPath string
		cfg        *config.Config
	)

	rootCmd := &cobra.Command{
		Use:   "aircraftdb",
		Short: "Resolve ICAO aircraft addresses against a tar1090 style database",
		Long: `aircraftdb looks up aircraft type, description and wake turbulence
category for ICAO 24-bit addresses in the sharded JSON database served by
dump1090, readsb and tar1090 web roots.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				v.SetConfigFile(configPath)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config file %s: %w", configPath, err)
				}
			}
			loaded, err := config.LoadWithViper(v)
			if err != nil {
				return err
			}
			cfg = loaded

			logging.Setup(logging.Config{
				Level:  logging.LogLevel(cfg.Log.Level),
				Pretty: cfg.Log.Pretty,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (yaml, toml or json)")
	flags.String("base-url", "", "database base URL, e.g. http://feeder.local/tar1090")
	flags.Int("max-concurrent-fetches", 2, "maximum simultaneous shard fetches")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("pretty", false, "human readable logs")
	for key, name := range map[string]string{
		"base_url":               "base-url",
		"max_concurrent_fetches": "max-concurrent-fetches",
		"log.level":              "log-level",
		"log.pretty":             "pretty",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	getConfig := func() *config.Config { return cfg }
	rootCmd.AddCommand(
		newLookupCmd(getConfig),
		newNearestCmd(getConfig),
		newServeCmd(v, getConfig),
	)
	return rootCmd
}

func newLookupCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup [icao...]",
		Short: "Resolve one or more ICAO addresses and print the records as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), getConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := batch.NewResolver(a.resolver, batch.DefaultConfig()).ResolveAll(cmd.Context(), args)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
}

func newNearestCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "nearest",
		Short: "Print the nearest low flying aircraft around the receiver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), getConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			match, err := a.locator.Nearest(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), match)
		},
	}
}

func newServeCmd(v *viper.Viper, getConfig func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve lookups, health and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Warm the type table; a failure only disables enrichment.
			go func() {
				if err := a.resolver.PreloadTypes(ctx); err != nil {
					a.logger.Warn().Err(err).Msg("Type table preload failed")
				}
			}()

			server := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           newMux(a.resolver, a.locator, a.readiness()),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info().
					Str("addr", cfg.ListenAddr).
					Str("base_url", cfg.BaseURL).
					Str("user_agent", cfg.UserAgent).
					Msg("Starting aircraftdb server")
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info().Msg("Shutting down aircraftdb server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("listen", ":8080", "listen address")
	if err := v.BindPFlag("listen_addr", cmd.Flags().Lookup("listen")); err != nil {
		panic(err)
	}
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
