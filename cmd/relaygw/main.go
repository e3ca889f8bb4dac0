// Copyright 2026 Blink Labs Software
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

	"github.com/blinklabs-io/relaygw"
	"github.com/blinklabs-io/relaygw/ethnode"
	"github.com/blinklabs-io/relaygw/rpc"
	"github.com/carlmjohnson/versioninfo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "relaygw",
		Usage:   "blockchain relay gateway",
		Version: versioninfo.Short(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "network",
				Usage:   fmt.Sprintf("network to serve (one of %v)", relaygw.NetworkNames()),
				Value:   relaygw.NetworkBtcMainnet.Name,
				EnvVars: []string{"RELAYGW_NETWORK"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log verbosity (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"RELAYGW_LOG_LEVEL", "LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "log output format (json or text)",
				Value:   "json",
				EnvVars: []string{"RELAYGW_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "rpc-listen",
				Usage:   "IP or address, and port, to listen on for RPC websocket clients and relay frames",
				Value:   ":28333",
				EnvVars: []string{"RELAYGW_RPC_LISTEN"},
			},
			&cli.StringFlag{
				Name:    "metrics-listen",
				Usage:   "IP or address, and port, to listen on for metrics APIs",
				Value:   ":9090",
				EnvVars: []string{"RELAYGW_METRICS_LISTEN"},
			},
			&cli.StringFlag{
				Name:    "eth-node-url",
				Usage:   "websocket URL of an Ethereum node to read pending transactions from",
				EnvVars: []string{"RELAYGW_ETH_NODE_URL"},
			},
			&cli.StringSliceFlag{
				Name:    "btc-peer",
				Usage:   "address and port of a Bitcoin node to connect to (may be repeated)",
				EnvVars: []string{"RELAYGW_BTC_PEERS"},
			},
			&cli.StringFlag{
				Name:    "btc-listen",
				Usage:   "IP or address, and port, to accept Bitcoin peer connections on",
				EnvVars: []string{"RELAYGW_BTC_LISTEN"},
			},
			&cli.DurationFlag{
				Name:    "dedup-window",
				Usage:   "how long a transaction or block hash is remembered for duplicate suppression",
				Value:   relaygw.DefaultDedupWindow,
				EnvVars: []string{"RELAYGW_DEDUP_WINDOW"},
			},
			&cli.IntFlag{
				Name:    "queue-size",
				Usage:   "maximum number of undelivered payloads per subscription",
				Value:   1000,
				EnvVars: []string{"RELAYGW_QUEUE_SIZE"},
			},
			&cli.DurationFlag{
				Name:    "handshake-timeout",
				Usage:   "time allowed for a Bitcoin peer to complete the version handshake",
				Value:   30 * time.Second,
				EnvVars: []string{"RELAYGW_HANDSHAKE_TIMEOUT"},
			},
			&cli.DurationFlag{
				Name:    "reconnect-interval",
				Usage:   "delay before reconnecting to a Bitcoin peer or Ethereum node",
				Value:   5 * time.Second,
				EnvVars: []string{"RELAYGW_RECONNECT_INTERVAL"},
			},
		},
		Action: runGateway,
	}
	return app.Run(args)
}

func runGateway(cctx *cli.Context) error {
	logger, err := newLogger(cctx.String("log-level"), cctx.String("log-format"))
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	network := relaygw.NetworkByName(cctx.String("network"))
	if network == relaygw.NetworkInvalid {
		return fmt.Errorf("unknown network %q", cctx.String("network"))
	}
	if cctx.String("eth-node-url") != "" && network.Family != relaygw.ProtocolFamilyEthereum {
		return fmt.Errorf("--eth-node-url requires an Ethereum network, got %s", network.Name)
	}
	if (len(cctx.StringSlice("btc-peer")) > 0 || cctx.String("btc-listen") != "") &&
		network.Family != relaygw.ProtocolFamilyBitcoin {
		return fmt.Errorf("--btc-peer and --btc-listen require a Bitcoin network, got %s", network.Name)
	}
	peerWatcher := newPeerWatcher()
	g, err := relaygw.New(
		relaygw.WithNetwork(network),
		relaygw.WithLogger(logger),
		relaygw.WithDedupWindow(cctx.Duration("dedup-window")),
		relaygw.WithQueueSize(cctx.Int("queue-size")),
		relaygw.WithHandshakeTimeout(cctx.Duration("handshake-timeout")),
		relaygw.WithUserAgent("/relaygw:"+versioninfo.Short()+"/"),
		relaygw.WithPeerClosedFunc(peerWatcher.peerClosed),
	)
	if err != nil {
		return err
	}
	defer g.Close()

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	group, ctx := errgroup.WithContext(ctx)

	// Metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	serveHttp(ctx, group, logger, "metrics", cctx.String("metrics-listen"), metricsMux)

	// RPC clients and relay frames
	rpcServer := rpc.NewServer(
		g.FeedManager(),
		rpc.WithLogger(logger),
		rpc.WithCheckOrigin(func(*http.Request) bool { return true }),
	)
	defer rpcServer.Close()
	rpcMux := http.NewServeMux()
	rpcMux.Handle("/", rpcServer)
	rpcMux.Handle("/relay", newRelayHandler(g, logger))
	serveHttp(ctx, group, logger, "rpc", cctx.String("rpc-listen"), rpcMux)
	group.Go(func() error {
		<-ctx.Done()
		// Hijacked websocket connections are not closed by http.Server.Shutdown
		rpcServer.Close()
		return nil
	})

	reconnectInterval := cctx.Duration("reconnect-interval")
	if url := cctx.String("eth-node-url"); url != "" {
		client := ethnode.NewClient(
			g.FeedManager(),
			ethnode.NewConfig(
				ethnode.WithLogger(logger),
				ethnode.WithUrl(url),
			),
		)
		group.Go(func() error {
			return retry(ctx, logger, "ethnode", reconnectInterval, client.Run)
		})
	}
	for _, address := range cctx.StringSlice("btc-peer") {
		group.Go(func() error {
			return retry(ctx, logger, "btc-peer "+address, reconnectInterval, func(ctx context.Context) error {
				return dialPeer(ctx, g, peerWatcher, address)
			})
		})
	}
	if address := cctx.String("btc-listen"); address != "" {
		listener, err := net.Listen("tcp", address)
		if err != nil {
			return fmt.Errorf("listen for peers on %s: %w", address, err)
		}
		group.Go(func() error {
			return acceptPeers(ctx, g, peerWatcher, logger, listener)
		})
	}

	logger.Info(
		"relaygw running",
		"version", versioninfo.Short(),
		"network", network.Name,
	)
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// serveHttp runs an HTTP server in the group until the context is cancelled
func serveHttp(
	ctx context.Context,
	group *errgroup.Group,
	logger *slog.Logger,
	name string,
	address string,
	handler http.Handler,
) {
	if address == "" {
		return
	}
	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	group.Go(func() error {
		logger.Info(
			"starting listener",
			"listener", name,
			"address", address,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s listener: %w", name, err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// retry calls fn until the context is cancelled, waiting between attempts
func retry(
	ctx context.Context,
	logger *slog.Logger,
	name string,
	interval time.Duration,
	fn func(context.Context) error,
) error {
	for {
		err := fn(ctx)
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn(
			"connection lost, reconnecting",
			"connection", name,
			"error", err,
			"retry_in", interval.String(),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
