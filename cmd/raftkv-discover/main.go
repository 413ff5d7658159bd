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
raftkv-discover - RaftKV Node Discovery Tool

This tool discovers RaftKV nodes on the local network using mDNS
(Bonjour/Avahi). It helps verify which cluster members are up and reachable.

Usage:
    raftkv-discover                    # Discover nodes (5 second timeout)
    raftkv-discover --timeout 10       # Custom timeout in seconds
    raftkv-discover --json             # Output as JSON
    raftkv-discover --quiet            # Only output addresses (for scripting)
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"raftkv/internal/discovery"
	"raftkv/pkg/cli"
)

const version = "1.0.0"

func main() {
	timeout := flag.Int("timeout", 5, "Discovery timeout in seconds")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	quiet := flag.Bool("quiet", false, "Only output node addresses (for scripting)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("raftkv-discover v%s\n", version)
		os.Exit(0)
	}

	// Suppress mDNS library logging (it logs IPv6 errors that are not critical)
	log.SetOutput(io.Discard)

	disc := discovery.NewService(discovery.Config{
		NodeID:  "discover-client",
		Enabled: false, // Don't advertise, just discover
	})

	if !*quiet && !*jsonOutput {
		cli.PrintInfo("Scanning for RaftKV nodes on the network (timeout: %ds)...", *timeout)
		fmt.Println()
	}

	nodes, err := disc.DiscoverNodes(time.Duration(*timeout) * time.Second)
	if err != nil {
		if !*quiet {
			cli.PrintError("Discovery failed: %v", err)
		}
		os.Exit(1)
	}

	if len(nodes) == 0 {
		if !*quiet && !*jsonOutput {
			cli.PrintWarning("No RaftKV nodes found on the network.")
			fmt.Println()
			fmt.Println(cli.Dimmed("  Common issues:"))
			fmt.Printf("    • nodes are not running with %s\n", cli.Highlight("--advertise"))
			fmt.Println("    • mDNS/Bonjour is blocked by firewall (UDP port 5353)")
			fmt.Println("    • nodes are on a different network segment")
		}
		os.Exit(0)
	}

	switch {
	case *jsonOutput:
		outputJSON(nodes)
	case *quiet:
		outputQuiet(nodes)
	default:
		outputHuman(nodes)
	}
}

func outputJSON(nodes []*discovery.DiscoveredNode) {
	type nodeOutput struct {
		NodeID  string `json:"node_id"`
		Host    string `json:"host"`
		Port    int    `json:"port"`
		Version string `json:"version,omitempty"`
	}

	output := make([]nodeOutput, len(nodes))
	for i, n := range nodes {
		output[i] = nodeOutput{
			NodeID:  n.NodeID,
			Host:    n.Host,
			Port:    n.Port,
			Version: n.Version,
		}
	}

	data, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(data))
}

func outputQuiet(nodes []*discovery.DiscoveredNode) {
	addrs := make([]string, len(nodes))
	for i, n := range nodes {
		addrs[i] = fmt.Sprintf("%s:%d", n.Host, n.Port)
	}
	fmt.Println(strings.Join(addrs, ","))
}

func outputHuman(nodes []*discovery.DiscoveredNode) {
	cli.PrintSuccess("Found %d RaftKV node(s)", len(nodes))
	fmt.Println()

	table := cli.NewTable("NODE", "ADDRESS", "VERSION")
	for _, n := range nodes {
		table.AddRow(n.NodeID, fmt.Sprintf("%s:%d", n.Host, n.Port), n.Version)
	}
	table.Print()
}
