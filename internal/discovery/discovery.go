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
Package discovery announces and finds RaftKV nodes over mDNS.

Nodes advertise the _raftkv._udp service with their node id, consensus port,
and version in TXT records. The raftkv-discover tool browses the same
service to locate running nodes on the local network.

Discovery is informational only: cluster membership is fixed by config.json,
and a discovered node never joins a cluster by being seen. Membership-change
RPCs are reserved and unimplemented in this revision.
*/
package discovery

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"raftkv/internal/logging"
)

// ServiceType is the mDNS service RaftKV nodes advertise.
const ServiceType = "_raftkv._udp"

// Version is the advertised software version.
const Version = "1.0.0"

// Config holds discovery settings for one node.
type Config struct {
	NodeID  string // instance name, typically host:port
	Port    uint16 // consensus UDP port
	Enabled bool   // advertise this node
}

// DiscoveredNode describes one node found on the network.
type DiscoveredNode struct {
	NodeID  string
	Host    string
	Port    int
	Version string
}

// Service advertises this node and browses for others.
type Service struct {
	config Config
	server *mdns.Server
	logger *logging.Logger
}

// NewService creates a discovery service. Start only advertises when the
// config enables it; DiscoverNodes works either way.
func NewService(config Config) *Service {
	return &Service{
		config: config,
		logger: logging.NewLogger("discovery"),
	}
}

// Start begins advertising this node over mDNS.
func (s *Service) Start() error {
	if !s.config.Enabled {
		return nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "raftkv-node"
	}

	txt := []string{
		fmt.Sprintf("node_id=%s", s.config.NodeID),
		fmt.Sprintf("port=%d", s.config.Port),
		fmt.Sprintf("version=%s", Version),
	}
	zone, err := mdns.NewMDNSService(
		s.config.NodeID, ServiceType, "", hostname+".", int(s.config.Port), nil, txt)
	if err != nil {
		return fmt.Errorf("failed to create mDNS zone: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return fmt.Errorf("failed to start mDNS server: %w", err)
	}
	s.server = server
	s.logger.Info("advertising node", "service", ServiceType, "node_id", s.config.NodeID)
	return nil
}

// Stop halts advertising.
func (s *Service) Stop() error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown()
	s.server = nil
	return err
}

// DiscoverNodes browses the network for RaftKV nodes until the timeout
// elapses.
func (s *Service) DiscoverNodes(timeout time.Duration) ([]*DiscoveredNode, error) {
	entries := make(chan *mdns.ServiceEntry, 32)
	done := make(chan []*DiscoveredNode, 1)

	go func() {
		var nodes []*DiscoveredNode
		for entry := range entries {
			nodes = append(nodes, entryToNode(entry))
		}
		done <- nodes
	}()

	err := mdns.Query(&mdns.QueryParam{
		Service:     ServiceType,
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	})
	close(entries)
	nodes := <-done
	if err != nil {
		return nil, fmt.Errorf("mDNS query failed: %w", err)
	}
	return nodes, nil
}

func entryToNode(entry *mdns.ServiceEntry) *DiscoveredNode {
	node := &DiscoveredNode{
		NodeID: entry.Name,
		Port:   entry.Port,
	}
	if entry.AddrV4 != nil {
		node.Host = entry.AddrV4.String()
	} else {
		node.Host = entry.Host
	}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "node_id":
			node.NodeID = value
		case "version":
			node.Version = value
		}
	}
	return node
}
