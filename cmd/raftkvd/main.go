/*
 * Copyright (c) 2026 RaftKV Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
raftkvd - RaftKV consensus server

One raftkvd process is one cluster member. The sibling config.json lists
every member's UDP port; the process's own --port must appear there:

	{"ports": [5001, 5002, 5003]}

Usage:
    raftkvd --port 5001
    raftkvd --port 5001 --data /var/lib/raftkv/5001
    raftkvd --port 5001 --advertise          # announce over mDNS

The server exits 0 on SIGINT/SIGTERM and 1 on fatal initialization failure.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"raftkv/internal/config"
	"raftkv/internal/discovery"
	"raftkv/internal/errors"
	"raftkv/internal/logging"
	"raftkv/internal/raft"
	"raftkv/internal/store"
	"raftkv/internal/transport"
	"raftkv/pkg/cli"
)

func main() {
	port := flag.Uint("port", 0, "server UDP port (required, must appear in config.json)")
	dataDir := flag.String("data", "", "data directory (default data/<port>)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "emit JSON log lines")
	advertise := flag.Bool("advertise", false, "announce this node over mDNS")
	flag.Parse()

	if *port == 0 || *port > 65535 {
		(&cli.CLIError{
			Message:     "a valid --port is required",
			Suggestions: []string{"raftkvd --port 5001"},
			ExitCode:    1,
		}).Exit()
	}

	cfg := config.DefaultConfig()
	cfg.Port = uint16(*port)
	cfg.DataDir = filepath.Join("data", fmt.Sprint(*port))
	cfg.LoadFromEnv()
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logJSON {
		cfg.LogJSON = true
	}
	cfg.Advertise = cfg.Advertise || *advertise

	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	cfg.ApplyLogging()
	logger := logging.NewLogger("server")

	cluster, err := config.LoadCluster(config.ClusterFile)
	if err != nil {
		fatal(err)
	}
	if !cluster.Contains(cfg.Port) {
		fatal(errors.PortNotInCluster(cfg.Port))
	}

	self := store.Address{Host: config.BindHost, Port: cfg.Port}
	peers := make([]store.Address, 0, len(cluster.Ports)-1)
	for _, p := range cluster.PeersOf(cfg.Port) {
		peers = append(peers, store.Address{Host: config.BindHost, Port: p})
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		fatal(err)
	}

	loop, err := transport.NewLoop(cfg.Port)
	if err != nil {
		fatal(err)
	}

	engine := raft.New(raft.Config{
		Self:                self,
		Peers:               peers,
		ElectionTimeoutLow:  cfg.ElectionTimeoutLow,
		ElectionTimeoutHigh: cfg.ElectionTimeoutHigh,
		HeartbeatInterval:   cfg.HeartbeatInterval,
	}, st, loop.Send)

	disc := discovery.NewService(discovery.Config{
		NodeID:  self.String(),
		Port:    cfg.Port,
		Enabled: cfg.Advertise,
	})
	if err := disc.Start(); err != nil {
		// Discovery is informational; a node without mDNS still serves.
		logger.Warn("mDNS advertising unavailable", "err", err)
	}
	defer disc.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		loop.Close()
	}()

	logger.Info("server starting", "addr", self, "peers", len(peers), "data_dir", cfg.DataDir)

	if err := loop.Run(ctx, engine); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}

	logger.Info("server ending normally")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s %s\n", cli.ErrorIcon(), cli.Error(err.Error()))
	os.Exit(1)
}
