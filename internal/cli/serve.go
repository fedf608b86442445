package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/rdialog/internal/compiler"
	"github.com/roach88/rdialog/internal/engine"
	"github.com/roach88/rdialog/internal/server"
	"github.com/roach88/rdialog/internal/store"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve [dialogs-dir]",
		Short: "Serve dialogs over HTTP",
		Long: `Serve every dialog in a directory over HTTP.

Each dialog answers POST /dialogs/{dialog}/trigger and /patch. Passes are
counted in Prometheus metrics at /metrics and, with a trace store,
recorded and listed at /dialogs/{dialog}/passes.

Examples:
  rdialog serve ./dialogs
  rdialog serve ./dialogs --addr :9090 --db ./trace.db
  rdialog serve --config rdialog.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, opts.dialogsDir(args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record passes in this trace store")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, dir string, cmd *cobra.Command) error {
	srv, closer, err := opts.buildServer(ctx, dir, cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	logger := opts.log()
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", srv.Addr, "dialogs", dir)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return WrapExitError(ExitCommandError, "server error", err)

	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			if err := srv.Close(); err != nil {
				return WrapExitError(ExitFailure, "close server", err)
			}
		}
		logger.Info("server stopped")
		return nil
	}
}

// buildServer loads every dialog in dir and wires the HTTP server. The
// returned closer releases the trace store.
func (o *ServeOptions) buildServer(ctx context.Context, dir string, cmd *cobra.Command) (*http.Server, io.Closer, error) {
	formatter := newFormatter(cmd, o.RootOptions)
	cfg := o.config()
	logger := o.log()

	loaded, err := loadDialogs(formatter, dir)
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := engine.NewMetrics(reg)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "register metrics", err)
	}

	engineOpts := []engine.Option{engine.WithMetrics(metrics), engine.WithLogger(logger)}
	serverOpts := []server.Option{server.WithGatherer(reg), server.WithLogger(logger)}

	var closer io.Closer = closerFunc(func() error { return nil })
	if path := o.database(o.Database); path != "" {
		st, err := store.Open(path)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return nil, nil, WrapExitError(ExitCommandError, "open trace store", err)
		}
		last, err := st.ListPasses(ctx, "", 1)
		if err != nil {
			st.Close()
			return nil, nil, WrapExitError(ExitCommandError, "read trace store", err)
		}
		var seq int64
		if len(last) > 0 {
			seq = last[0].Seq
		}
		// One clock for all dialogs keeps seq unique within the store.
		engineOpts = append(engineOpts, engine.WithRecorder(st), engine.WithClock(engine.NewClockAt(seq)))
		serverOpts = append(serverOpts, server.WithPasses(st))
		closer = st
		logger.Info("recording passes", "db", path, "seq", seq)
	}

	dialogs := make([]*engine.Dialog, 0, len(loaded.Dialogs))
	for _, spec := range loaded.Dialogs {
		d, err := compiler.Instantiate(spec, engineOpts...)
		if err != nil {
			closer.Close()
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("instantiate dialog %q", spec.Name), err)
		}
		dialogs = append(dialogs, d)
	}

	api, err := server.New(dialogs, serverOpts...)
	if err != nil {
		closer.Close()
		return nil, nil, WrapExitError(ExitCommandError, "build server", err)
	}

	addr := cfg.Server.Addr
	if o.Addr != "" {
		addr = o.Addr
	}
	return &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}, closer, nil
}
