package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/opd-ai/storybook/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr     string
		useTLS   bool
		certFile string
		keyFile  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive compositor over HTTP",
		Long: `Starts the compositor server. Hosts post book JSON to create editing
sessions, fetch page previews as SVG, edit layouts, and download PDF or
image exports.`,
		Example: `  # Plain HTTP on the default address
  storybook serve

  # HTTPS with a self-signed certificate generated on first run
  storybook serve --tls --cert certs/server.crt --key certs/server.key`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := server.NewCompositorUI()
			defer ui.Close()

			srv := &http.Server{
				Addr:    addr,
				Handler: ui,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("compositor listening", "addr", addr, "tls", useTLS)
				var err error
				if useTLS {
					err = server.ListenAndServeTLS(addr, certFile, keyFile, ui)
				} else {
					err = srv.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Error("server shutdown failed", "err", err)
					return err
				}
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8480", "listen address")
	cmd.Flags().BoolVar(&useTLS, "tls", false, "serve HTTPS, generating a self-signed cert if needed")
	cmd.Flags().StringVar(&certFile, "cert", "certs/server.crt", "TLS certificate file")
	cmd.Flags().StringVar(&keyFile, "key", "certs/server.key", "TLS key file")
	return cmd
}
