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
Package config handles RaftKV server configuration.

Two sources feed a node's configuration:

  - config.json, the cluster membership file shared by every node:
    {"ports": [5001, 5002, 5003]}. The process's own --port must appear in
    the list; every member binds 127.0.0.1.
  - Environment variables, which override per-node settings (log level,
    data directory, timer bounds). Environment wins over defaults.

Timer bounds follow the Raft guidance: the election timeout is drawn
uniformly from [low, high) and the leader heartbeat runs at low/3.
*/
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"raftkv/internal/errors"
	"raftkv/internal/logging"
)

// Environment variable names.
const (
	EnvDataDir            = "RAFTKV_DATA_DIR"
	EnvLogLevel           = "RAFTKV_LOG_LEVEL"
	EnvLogJSON            = "RAFTKV_LOG_JSON"
	EnvElectionTimeoutLow = "RAFTKV_ELECTION_TIMEOUT_LOW_MS"
	EnvElectionTimeoutHi  = "RAFTKV_ELECTION_TIMEOUT_HIGH_MS"
	EnvAdvertise          = "RAFTKV_ADVERTISE"
)

// ClusterFile is the name of the shared membership file, read from the
// server's working directory.
const ClusterFile = "config.json"

// BindHost is the interface every cluster member binds and dials.
const BindHost = "127.0.0.1"

// Config holds one node's settings.
type Config struct {
	Port uint16 // this node's UDP port; must appear in the cluster file

	DataDir  string // directory holding state.json, log.json, db.json
	LogLevel string
	LogJSON  bool

	ElectionTimeoutLow  time.Duration
	ElectionTimeoutHigh time.Duration
	HeartbeatInterval   time.Duration

	Advertise bool // announce this node over mDNS
}

// DefaultConfig returns a Config with sensible defaults. The port is zero
// and must be supplied by the caller.
func DefaultConfig() *Config {
	return &Config{
		DataDir:             "data",
		LogLevel:            "info",
		LogJSON:             false,
		ElectionTimeoutLow:  150 * time.Millisecond,
		ElectionTimeoutHigh: 300 * time.Millisecond,
		HeartbeatInterval:   50 * time.Millisecond,
		Advertise:           false,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Port == 0 {
		return errors.InvalidValue("port", "port must be between 1 and 65535")
	}
	if c.DataDir == "" {
		return errors.MissingRequired("data_dir")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.InvalidValue("log_level",
			fmt.Sprintf("%q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.ElectionTimeoutLow <= 0 || c.ElectionTimeoutHigh <= c.ElectionTimeoutLow {
		return errors.InvalidValue("election_timeout",
			"bounds must satisfy 0 < low < high")
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatInterval >= c.ElectionTimeoutLow {
		return errors.InvalidValue("heartbeat_interval",
			"must be positive and below the election timeout lower bound")
	}
	return nil
}

// LoadFromEnv applies environment variable overrides.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		c.LogJSON = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvElectionTimeoutLow); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.ElectionTimeoutLow = time.Duration(ms) * time.Millisecond
			c.HeartbeatInterval = c.ElectionTimeoutLow / 3
		}
	}
	if v := os.Getenv(EnvElectionTimeoutHi); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.ElectionTimeoutHigh = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv(EnvAdvertise); v != "" {
		c.Advertise = v == "true" || v == "1"
	}
}

// ApplyLogging configures the global logger from this config.
func (c *Config) ApplyLogging() {
	logging.SetGlobalLevel(logging.ParseLevel(c.LogLevel))
	logging.SetJSONMode(c.LogJSON)
}

// String returns a printable summary.
func (c *Config) String() string {
	return fmt.Sprintf("Port: %d, DataDir: %s, LogLevel: %s, Election: [%s, %s), Heartbeat: %s",
		c.Port, c.DataDir, c.LogLevel,
		c.ElectionTimeoutLow, c.ElectionTimeoutHigh, c.HeartbeatInterval)
}

// Cluster is the shared membership file contents.
type Cluster struct {
	Ports []uint16 `json:"ports"`
}

// LoadCluster reads and validates a cluster membership file.
func LoadCluster(path string) (*Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("failed to read cluster file").
			WithDetail(path).WithCause(err)
	}
	var cluster Cluster
	if err := json.Unmarshal(data, &cluster); err != nil {
		return nil, errors.NewConfigError("failed to parse cluster file").
			WithDetail(path).WithCause(err)
	}
	if len(cluster.Ports) == 0 {
		return nil, errors.MissingRequired("ports")
	}
	seen := make(map[uint16]bool, len(cluster.Ports))
	for _, port := range cluster.Ports {
		if port == 0 {
			return nil, errors.InvalidValue("ports", "port 0 is not bindable")
		}
		if seen[port] {
			return nil, errors.InvalidValue("ports", fmt.Sprintf("duplicate port %d", port))
		}
		seen[port] = true
	}
	return &cluster, nil
}

// Contains reports whether the cluster lists the given port.
func (c *Cluster) Contains(port uint16) bool {
	for _, p := range c.Ports {
		if p == port {
			return true
		}
	}
	return false
}

// PeersOf returns every cluster port except the given one.
func (c *Cluster) PeersOf(port uint16) []uint16 {
	peers := make([]uint16, 0, len(c.Ports)-1)
	for _, p := range c.Ports {
		if p != port {
			peers = append(peers, p)
		}
	}
	return peers
}
