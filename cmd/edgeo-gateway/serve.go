// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the routing gateway",
	Long: `Serve binds the BACnet/IP port and answers requests for the gateway device
and every routed device of the configured topology.

The first configured network is the virtual network the routed devices live
on. All networks are announced with I-Am-Router-To-Network at startup.

Examples:
  # Serve the topology from the config file
  edgeo-gateway serve

  # Override the virtual network and expose Prometheus metrics
  edgeo-gateway serve --networks 100 --metrics-addr :9108`,

	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", fmt.Sprintf(":%d", bacnet.DefaultPort), "Address to serve BACnet/IP on")
	serveCmd.Flags().IntSlice("networks", nil, "Virtual networks, the first one is routed")
	serveCmd.Flags().String("broadcast", "", "Broadcast address for announcements (default 255.255.255.255)")
	serveCmd.Flags().Bool("announce", true, "Announce networks at startup")
	serveCmd.Flags().String("password", "", "Password for ReinitializeDevice and DeviceCommunicationControl")
	serveCmd.Flags().String("metrics-addr", "", "Address to serve Prometheus metrics on (disabled when empty)")

	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("networks", serveCmd.Flags().Lookup("networks"))
	viper.BindPFlag("broadcast", serveCmd.Flags().Lookup("broadcast"))
	viper.BindPFlag("announce", serveCmd.Flags().Lookup("announce"))
	viper.BindPFlag("password", serveCmd.Flags().Lookup("password"))
	viper.BindPFlag("metrics-addr", serveCmd.Flags().Lookup("metrics-addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	topo, err := loadTopology()
	if err != nil {
		return err
	}
	networks, err := networkList(topo)
	if err != nil {
		return err
	}
	table, err := buildTable(topo, logger)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithAddress(viper.GetString("listen")),
		server.WithNetworks(networks),
		server.WithAnnounce(viper.GetBool("announce")),
		server.WithPassword(topo.Password),
		server.WithLogger(logger),
		server.WithReinitializeHandler(func(state uint32) error {
			logger.Warn("reinitialize requested", slog.Uint64("state", uint64(state)))
			return nil
		}),
	}
	if b := viper.GetString("broadcast"); b != "" {
		ip := net.ParseIP(b)
		if ip == nil {
			return fmt.Errorf("invalid broadcast address: %s", b)
		}
		opts = append(opts, server.WithBroadcastAddress(ip))
	}

	srv, err := server.New(table, buildDevice(topo, logger), opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if addr := viper.GetString("metrics-addr"); addr != "" {
		metricsServer, err := newMetricsServer(addr, srv)
		if err != nil {
			return err
		}
		g.Go(func() error {
			logger.Info("metrics listening", slog.String("addr", addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		defer stop()
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, server.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = g.Wait()

	m := srv.Metrics().Snapshot()
	logger.Info("gateway stopped",
		slog.Int64("requests", m.Requests),
		slog.Int64("acks", m.AcksSent),
		slog.Int64("dropped", m.PacketsDropped),
		slog.Duration("uptime", m.Uptime),
	)
	return err
}

// newMetricsServer builds the HTTP server exposing the gateway metrics
func newMetricsServer(addr string, srv *server.Server) (*http.Server, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(server.NewCollector(srv)); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}
