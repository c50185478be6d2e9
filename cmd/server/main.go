package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/injector"
	"github.com/zeusync/entisync/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		transport  string
		authz      string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:          "entisync-server",
		Short:        "Authoritative entity replication server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config := server.DefaultConfig()
			if configPath != "" {
				var err error
				if config, err = server.LoadConfig(configPath); err != nil {
					return err
				}
			}
			flags := cmd.Flags()
			if flags.Changed("listen") {
				config.ListenAddr = listenAddr
			}
			if flags.Changed("transport") {
				config.Transport = transport
			}
			if flags.Changed("authorization") {
				config.Authorization = authz
			}
			if flags.Changed("log-level") {
				level, err := log.ParseLevel(logLevel)
				if err != nil {
					return err
				}
				config.LogLevel = level
			}

			srv, err := injector.InitializeServer(config)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			stopCh := make(chan os.Signal, 1)
			signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stopCh)
			go func() {
				select {
				case <-stopCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			return srv.ListenAndServe(ctx, func(addr net.Addr) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "listening on %s (%s)\n", addr, config.Transport)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&listenAddr, "listen", "", "listen address, e.g. 127.0.0.1:8080")
	flags.StringVar(&transport, "transport", "", "websocket or quic")
	flags.StringVar(&authz, "authorization", "", "trust or owner")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}
