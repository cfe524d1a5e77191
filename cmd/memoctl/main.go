// Command memoctl inspects and maintains one namespace of a memocache
// backend: listing keys, showing entries, and deleting stale ones.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentuity/memocache/cache"
	"github.com/agentuity/memocache/config"
	"github.com/agentuity/memocache/logger"
	"github.com/agentuity/memocache/tui"
	"github.com/spf13/cobra"
)

const serviceName = "memoctl"

// session is the opened cache a subcommand works on.
type session struct {
	cfg     config.Config
	cache   *cache.Cache[any]
	backend cache.Backend
	log     logger.Logger
	out     io.Writer
	styled  bool
	close   func()
}

func openSession(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if prefix, _ := cmd.Flags().GetString("prefix"); prefix != "" {
		cfg.Prefix = prefix
	}

	log, tel, shutdown, err := config.NewTelemetry(ctx, cmd, serviceName)
	if err != nil {
		return nil, err
	}
	backend, err := config.OpenBackend(ctx, cfg.Backend, cfg.Prefix)
	if err != nil {
		shutdown()
		return nil, err
	}

	opts := append(cfg.CacheOptions(), cache.WithLogger(log))
	if tel != nil {
		opts = append(opts, cache.WithTracerProvider(tel.TracerProvider))
	}
	c, err := cache.New[any](backend, cfg.Timeout, opts...)
	if err != nil {
		closeBackend(backend, log)
		shutdown()
		return nil, err
	}

	plain, _ := cmd.Flags().GetBool("plain")
	log.Debug("opened %s backend for prefix %q", cfg.Backend.Type, cfg.Prefix)
	return &session{
		cfg:     cfg,
		cache:   c,
		backend: backend,
		log:     log,
		out:     cmd.OutOrStdout(),
		styled:  tui.HasTTY && !plain,
		close: func() {
			closeBackend(backend, log)
			shutdown()
		},
	}, nil
}

func closeBackend(b cache.Backend, log logger.Logger) {
	if closer, ok := b.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warn("closing backend: %s", err)
		}
	}
}

// withSession opens a session for the duration of fn.
func withSession(fn func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()
		return fn(cmd.Context(), s, args)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "memoctl",
		Short:         "Inspect and maintain a memocache namespace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml or toml), defaults to $MEMO_CONFIG_FILE")
	flags.String("prefix", "", "cache namespace, overrides the config prefix")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.String("otlp-url", "", "OTLP/HTTP collector to export logs and traces to")
	flags.String("otlp-token", "", "bearer token for the OTLP collector")
	flags.Bool("plain", false, "print tab separated output even on a terminal")

	root.AddCommand(
		newKeysCmd(),
		newGetCmd(),
		newExistsCmd(),
		newDeleteCmd(),
		newExpiredCmd(),
		newStaleCmd(),
		newPurgeCmd(),
		newClearCmd(),
		newMigrateCmd(),
	)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, tui.Warning("error: "+err.Error()))
		cancel()
		os.Exit(1)
	}
}
