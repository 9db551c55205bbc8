package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/naveenspark/shopdrop/internal/shoptest"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

const (
	demoEmail    = "demo@shopdrop.test"
	demoPassword = "demo1234"
)

// devServerRouter serves the in-memory store under /api, the path the
// client expects by default. The store logs its own requests.
func devServerRouter(store *shoptest.Server) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK")) //nolint:errcheck
	})
	r.Mount("/api", store)
	return r
}

func newDevServerCmd(e *env) *cobra.Command {
	var (
		addr        string
		tokenTTL    time.Duration
		checkoutURL string
		demo        bool
	)
	cmd := &cobra.Command{
		Use:    "devserver",
		Short:  "Run an in-memory store API for local development",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			opts := []shoptest.Option{
				shoptest.WithLogger(logger),
				shoptest.WithTokenTTL(tokenTTL),
			}
			if checkoutURL != "" {
				opts = append(opts, shoptest.WithCheckoutURL(checkoutURL))
			}
			store := shoptest.New(opts...)
			if demo {
				store.AddUser("demo", demoEmail, demoPassword, domain.RoleCustomer)
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           devServerRouter(store),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			done := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					done <- fmt.Errorf("server failed: %w", err)
					return
				}
				done <- nil
			}()

			out := cmd.OutOrStdout()
			printBanner(out, e.version)
			fmt.Fprintf(out, "Serving the store API on %s/api\n", addr)
			if demo {
				fmt.Fprintf(out, "Demo account: %s / %s\n", demoEmail, demoPassword)
			}

			select {
			case <-ctx.Done():
				fmt.Fprintln(out, "\nShutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("server shutdown failed: %w", err)
				}
				return nil
			case err := <-done:
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:3000", "Address to listen on")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 15*time.Minute, "Lifetime of issued access tokens")
	cmd.Flags().StringVar(&checkoutURL, "checkout-url", "", "Base URL of the fake payment page")
	cmd.Flags().BoolVar(&demo, "demo", true, "Create a demo account")
	return cmd
}
