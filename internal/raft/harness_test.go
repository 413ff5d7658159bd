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

package raft

import (
	"math/rand"
	"testing"
	"time"

	"raftkv/internal/rpc"
	"raftkv/internal/store"
)

const (
	testTimeoutLow  = 150 * time.Millisecond
	testTimeoutHigh = 300 * time.Millisecond
	testHeartbeat   = 50 * time.Millisecond
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

func addr(port uint16) store.Address {
	return store.Address{Host: "127.0.0.1", Port: port}
}

// sentEnvelope records one outbound envelope.
type sentEnvelope struct {
	env rpc.Envelope
	to  store.Address
}

// outbox collects a single engine's sends.
type outbox struct {
	msgs []sentEnvelope
}

func (o *outbox) send(env rpc.Envelope, to store.Address) {
	o.msgs = append(o.msgs, sentEnvelope{env: env, to: to})
}

func (o *outbox) drain() []sentEnvelope {
	msgs := o.msgs
	o.msgs = nil
	return msgs
}

// newTestEngine builds an engine over a fresh store with a seeded RNG and a
// fake clock, capturing sends in the returned outbox.
func newTestEngine(t *testing.T, self uint16, peers ...uint16) (*Engine, *outbox, *fakeClock) {
	t.Helper()

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}

	peerAddrs := make([]store.Address, len(peers))
	for i, p := range peers {
		peerAddrs[i] = addr(p)
	}

	clock := newFakeClock()
	out := &outbox{}
	e := New(Config{
		Self:                addr(self),
		Peers:               peerAddrs,
		ElectionTimeoutLow:  testTimeoutLow,
		ElectionTimeoutHigh: testTimeoutHigh,
		HeartbeatInterval:   testHeartbeat,
		Clock:               clock,
		Rand:                rand.New(rand.NewSource(int64(self))),
	}, st, out.send)
	return e, out, clock
}

// decodePayload decodes an envelope's content or fails the test.
func decodePayload(t *testing.T, env rpc.Envelope, v interface{}) {
	t.Helper()
	if err := env.DecodePayload(v); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
}

// mustEnvelope wraps a payload or fails the test.
func mustEnvelope(t *testing.T, dir rpc.Direction, typ rpc.Type, payload interface{}) rpc.Envelope {
	t.Helper()
	env, err := rpc.NewEnvelope(dir, typ, payload)
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	return env
}

// receive delivers an envelope or fails the test.
func receive(t *testing.T, e *Engine, env rpc.Envelope, from store.Address) {
	t.Helper()
	if err := e.OnReceive(env, from); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}
}

// tick fires the engine's timer or fails the test.
func tick(t *testing.T, e *Engine, now time.Time) {
	t.Helper()
	if err := e.OnTick(now); err != nil {
		t.Fatalf("OnTick failed: %v", err)
	}
}

// appendEntries seeds a store with entries, failing the test on error.
func appendEntries(t *testing.T, e *Engine, entries ...store.Entry) {
	t.Helper()
	for _, entry := range entries {
		if err := e.store.AppendOrReplace(entry); err != nil {
			t.Fatalf("AppendOrReplace failed: %v", err)
		}
	}
}

// forceTerm drives a store to the given term, failing the test on error.
func forceTerm(t *testing.T, e *Engine, term uint64) {
	t.Helper()
	if _, err := e.store.SetCurrentTerm(term); err != nil {
		t.Fatalf("SetCurrentTerm failed: %v", err)
	}
}
