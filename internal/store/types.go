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

package store

import (
	"fmt"
	"net"
	"regexp"

	"raftkv/internal/errors"
)

// Entry is a single record in the replicated log. Entries are immutable once
// created; equality is structural. The log is 1-indexed and index 0 is the
// synthetic sentinel entry, which makes "previous entry" queries total.
type Entry struct {
	Index uint64 `json:"index"`
	Term  uint64 `json:"term"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Sentinel is the synthetic entry at index 0.
var Sentinel = Entry{Index: 0, Term: 0}

// String returns a compact representation for log lines.
func (e Entry) String() string {
	return fmt.Sprintf("{%d t%d %s=%s}", e.Index, e.Term, e.Key, e.Value)
}

// hostnamePattern matches DNS hostnames (RFC 1123 labels). IPv4 literals are
// validated separately with net.ParseIP.
var hostnamePattern = regexp.MustCompile(
	`^(([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9\-]*[a-zA-Z0-9])\.)*([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9\-]*[A-Za-z0-9])$`)

// Address identifies a node by host and port. It is used both as node
// identity and as a routing target, and is comparable so it can key maps.
type Address struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

// NewAddress builds a validated Address.
func NewAddress(host string, port uint16) (Address, error) {
	a := Address{Host: host, Port: port}
	if err := a.Validate(); err != nil {
		return Address{}, err
	}
	return a, nil
}

// Validate checks that the host is a valid hostname or IPv4 literal.
func (a Address) Validate() error {
	if a.Host == "" {
		return errors.MissingRequired("host")
	}
	if ip := net.ParseIP(a.Host); ip != nil {
		if ip.To4() == nil {
			return errors.InvalidValue("host", "must be a hostname or IPv4 address")
		}
		return nil
	}
	if !hostnamePattern.MatchString(a.Host) {
		return errors.InvalidValue("host", fmt.Sprintf("%q is not a valid hostname", a.Host))
	}
	return nil
}

// String returns host:port.
func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}
