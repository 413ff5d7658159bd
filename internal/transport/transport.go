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
Package transport drives the consensus engine over a UDP socket.

Event Loop:
===========

One loop multiplexes two event sources, keeping every engine invocation on a
single goroutine:

 1. Socket readability, bounded by a read deadline set to the engine's next
    timer deadline. Each datagram may carry several newline-terminated
    envelopes; each is decoded and delivered in order.
 2. Deadline expiry, which fires the engine's OnTick (election timeout on
    followers and candidates, heartbeat on the leader).

After every batch of work the loop lets the engine apply newly committed
entries. Sends are best-effort: failures are logged and recovery is left to
the heartbeat/retry cycle. A socket that fails outright is rebound rather
than taking the process down.
*/
package transport

import (
	"context"
	"net"

	"raftkv/internal/config"
	"raftkv/internal/errors"
	"raftkv/internal/logging"
	"raftkv/internal/raft"
	"raftkv/internal/rpc"
	"raftkv/internal/store"
)

// maxDatagram bounds a single inbound read. AppendEntries batches are small;
// anything larger than this is not a well-formed peer.
const maxDatagram = 64 * 1024

// Loop owns the UDP socket and drives an engine.
type Loop struct {
	port   uint16
	conn   *net.UDPConn
	clock  raft.Clock
	logger *logging.Logger
}

// NewLoop binds the node's datagram socket on 127.0.0.1.
func NewLoop(port uint16) (*Loop, error) {
	l := &Loop{
		port:   port,
		clock:  raft.SystemClock{},
		logger: logging.NewLogger("transport"),
	}
	if err := l.bind(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loop) bind() error {
	addr := &net.UDPAddr{IP: net.ParseIP(config.BindHost), Port: int(l.port)}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return errors.BindFailed(addr.String(), err)
	}
	l.conn = conn
	l.logger.Info("listening", "addr", addr.String())
	return nil
}

// Send transmits one envelope to a peer. It satisfies raft.SendFunc; errors
// are logged and swallowed, the heartbeat cycle retries lost traffic.
func (l *Loop) Send(env rpc.Envelope, to store.Address) {
	data, err := env.Encode()
	if err != nil {
		l.logger.Error("failed to encode envelope", "type", env.Type, "err", err)
		return
	}
	dst := &net.UDPAddr{IP: net.ParseIP(to.Host), Port: int(to.Port)}
	if dst.IP == nil {
		ips, err := net.LookupIP(to.Host)
		if err != nil || len(ips) == 0 {
			l.logger.Error("failed to resolve peer", "peer", to, "err", err)
			return
		}
		dst.IP = ips[0]
	}
	if _, err := l.conn.WriteToUDP(data, dst); err != nil {
		l.logger.Error("failed to send RPC", "peer", to, "err", err)
	}
}

// Port returns the bound UDP port. Useful when the loop was bound to an
// ephemeral port.
func (l *Loop) Port() uint16 {
	return uint16(l.conn.LocalAddr().(*net.UDPAddr).Port)
}

// Close shuts the socket, unblocking a running loop.
func (l *Loop) Close() error {
	return l.conn.Close()
}

// Run drives the engine until ctx is cancelled or a fatal storage error
// surfaces. It must be the only goroutine touching the engine.
func (l *Loop) Run(ctx context.Context, engine *raft.Engine) error {
	buf := make([]byte, maxDatagram)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := l.conn.SetReadDeadline(engine.Deadline()); err != nil {
			return errors.NewTransportError("failed to arm read deadline").WithCause(err)
		}

		n, sender, err := l.conn.ReadFromUDP(buf)
		now := l.clock.Now()

		switch {
		case err == nil:
			if dispatchErr := l.dispatch(engine, buf[:n], sender); dispatchErr != nil {
				return dispatchErr
			}
		case isTimeout(err):
			if engine.IsTimedOut(now) {
				if tickErr := engine.OnTick(now); tickErr != nil {
					return tickErr
				}
			}
		default:
			if ctx.Err() != nil {
				return nil
			}
			// The socket went bad underneath us; re-initialize it and keep
			// serving rather than dropping out of the cluster.
			l.logger.Error("socket failure, rebinding", "err", err)
			l.conn.Close()
			if bindErr := l.bind(); bindErr != nil {
				return bindErr
			}
		}

		if err := engine.ApplyCommits(); err != nil {
			return err
		}
	}
}

// dispatch decodes every envelope in one datagram and hands them to the
// engine in order. Malformed documents are logged and dropped; only storage
// failures escape the engine, and those are fatal.
func (l *Loop) dispatch(engine *raft.Engine, data []byte, sender *net.UDPAddr) error {
	from := store.Address{Host: sender.IP.String(), Port: uint16(sender.Port)}
	for _, doc := range rpc.SplitDatagram(data) {
		env, err := rpc.DecodeEnvelope(doc)
		if err != nil {
			l.logger.Error("dropping malformed datagram", "from", from, "err", err)
			continue
		}
		if err := engine.OnReceive(env, from); err != nil {
			return err
		}
	}
	return nil
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
