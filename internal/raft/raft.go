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
Package raft implements the per-node Raft consensus engine.

Raft Consensus Overview:
========================

A cluster of nodes elects a leader by majority vote, the leader replicates a
log of key/value writes to its followers, and entries present on a majority
are committed and applied to the local database.

Key Properties:
- Leader Election: at most one leader per term, elected by majority vote
- Log Replication: the leader overwrites follower logs that diverge
- Safety: a committed entry is never replaced
- Durability: term, vote, and log survive restart

Engine Model:
=============

The engine is strictly single-threaded: one event loop multiplexes socket
readiness against the election/heartbeat deadline and drives the engine
through OnTick, OnReceive, and ApplyCommits. All state lives on the engine
and its store; there is no internal locking. Outbound envelopes leave through
a send callback lent by the transport, best-effort — lost packets are
recovered by the heartbeat/retry cycle.

Role State Machine:
===================

	Follower --election timeout--> Candidate --majority--> Leader
	Candidate --election timeout--> Candidate (new term)
	any role --higher term observed--> Follower
	Candidate --AppendEntries with term >= ours--> Follower

Leader-only nextIndex/matchIndex bookkeeping is discarded on demotion and
reinitialized on promotion.
*/
package raft

import (
	"math/rand"
	"time"

	"raftkv/internal/errors"
	"raftkv/internal/logging"
	"raftkv/internal/rpc"
	"raftkv/internal/store"
)

// Role represents the current role of a Raft node.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "FOLLOWER"
	case Candidate:
		return "CANDIDATE"
	case Leader:
		return "LEADER"
	default:
		return "UNKNOWN"
	}
}

// SendFunc transmits an outbound envelope to a peer. Implementations are
// best-effort; failures are logged by the transport and never reach the
// engine.
type SendFunc func(env rpc.Envelope, to store.Address)

// Config holds the static parameters of one engine instance.
type Config struct {
	Self  store.Address
	Peers []store.Address // every cluster member except Self

	ElectionTimeoutLow  time.Duration
	ElectionTimeoutHigh time.Duration
	HeartbeatInterval   time.Duration // defaults to ElectionTimeoutLow / 3

	Clock Clock      // defaults to the system clock
	Rand  *rand.Rand // timeout jitter source, defaults to a time-seeded source
}

// pendingReplication records what was last sent to a peer so a bare
// {term, success} reply can advance matchIndex. The wire response does not
// carry prevLogIndex or the entry count.
type pendingReplication struct {
	prevLogIndex uint64
	count        uint64
}

// Engine is the per-node consensus engine. It owns the volatile role state
// and drives the persistent store; the transport loop is its only caller.
type Engine struct {
	cfg    Config
	store  *store.Store
	send   SendFunc
	clock  Clock
	rng    *rand.Rand
	logger *logging.Logger

	role        Role
	commitIndex uint64
	lastApplied uint64

	// Candidate state
	votes map[store.Address]struct{}

	// Leader state
	nextIndex  map[store.Address]uint64
	matchIndex map[store.Address]uint64
	pending    map[store.Address]pendingReplication

	deadline time.Time
}

// New creates an engine around a loaded store. The node starts as a follower
// with a fresh randomized election deadline.
func New(cfg Config, st *store.Store, send SendFunc) *Engine {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = cfg.ElectionTimeoutLow / 3
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e := &Engine{
		cfg:    cfg,
		store:  st,
		send:   send,
		clock:  cfg.Clock,
		rng:    cfg.Rand,
		role:   Follower,
		logger: logging.NewLogger("raft").With("node", cfg.Self.String()),
	}
	e.resetElectionTimer(e.clock.Now())
	return e
}

// Role returns the engine's current role.
func (e *Engine) Role() Role {
	return e.role
}

// IsLeader reports whether this node currently leads its term.
func (e *Engine) IsLeader() bool {
	return e.role == Leader
}

// CommitIndex returns the highest committed log index.
func (e *Engine) CommitIndex() uint64 {
	return e.commitIndex
}

// LastApplied returns the highest applied log index.
func (e *Engine) LastApplied() uint64 {
	return e.lastApplied
}

// clusterSize counts every member including this node.
func (e *Engine) clusterSize() int {
	return len(e.cfg.Peers) + 1
}

// OnTick handles an expired election or heartbeat deadline.
func (e *Engine) OnTick(now time.Time) error {
	if e.role == Leader {
		e.advanceCommitIndex()
		e.broadcastAppendEntries()
		e.resetHeartbeatTimer(now)
		return nil
	}
	return e.startElection(now)
}

// OnReceive handles one decoded inbound envelope from sender.
func (e *Engine) OnReceive(env rpc.Envelope, sender store.Address) error {
	if err := e.demoteIfBehind(env); err != nil {
		return err
	}

	if !env.Type.Implemented() {
		e.logger.Error("dropping RPC",
			"err", errors.NotImplemented(env.Type.String()),
			"direction", env.Direction, "from", sender)
		return nil
	}

	switch {
	case env.Direction == rpc.DirectionRequest && env.Type == rpc.TypeAppendEntries:
		var req rpc.AppendEntriesRequest
		if err := env.DecodePayload(&req); err != nil {
			e.logger.Error("dropping malformed AppendEntries request", "err", err)
			return nil
		}
		return e.handleAppendEntriesRequest(req, sender)

	case env.Direction == rpc.DirectionRequest && env.Type == rpc.TypeRequestVote:
		var req rpc.RequestVoteRequest
		if err := env.DecodePayload(&req); err != nil {
			e.logger.Error("dropping malformed RequestVote request", "err", err)
			return nil
		}
		return e.handleRequestVoteRequest(req, sender)

	case env.Direction == rpc.DirectionResponse && env.Type == rpc.TypeAppendEntries:
		var res rpc.AppendEntriesResponse
		if err := env.DecodePayload(&res); err != nil {
			e.logger.Error("dropping malformed AppendEntries response", "err", err)
			return nil
		}
		e.handleAppendEntriesResponse(res, sender)
		return nil

	case env.Direction == rpc.DirectionResponse && env.Type == rpc.TypeRequestVote:
		var res rpc.RequestVoteResponse
		if err := env.DecodePayload(&res); err != nil {
			e.logger.Error("dropping malformed RequestVote response", "err", err)
			return nil
		}
		e.handleRequestVoteResponse(res, sender)
		return nil
	}
	return nil
}

// demoteIfBehind applies the universal term rule: any message carrying a
// term above ours advances our term (clearing the vote in the same durable
// write) and demotes us to follower, before the message is dispatched.
func (e *Engine) demoteIfBehind(env rpc.Envelope) error {
	var capture rpc.TermCapture
	if err := env.DecodePayload(&capture); err != nil || capture.Term == nil {
		// Termless or undecodable content is handled by the dispatcher.
		return nil
	}
	if *capture.Term <= e.store.CurrentTerm() {
		return nil
	}
	if _, err := e.store.SetCurrentTerm(*capture.Term); err != nil {
		return err
	}
	e.becomeFollower()
	return nil
}

// becomeFollower drops any candidate/leader bookkeeping and restarts the
// election timer.
func (e *Engine) becomeFollower() {
	if e.role != Follower {
		e.logger.Info("demoting to follower", "term", e.store.CurrentTerm(), "was", e.role)
	}
	e.role = Follower
	e.votes = nil
	e.nextIndex = nil
	e.matchIndex = nil
	e.pending = nil
	e.resetElectionTimer(e.clock.Now())
}

// reply wraps a response payload and sends it back to the requester.
func (e *Engine) reply(typ rpc.Type, payload interface{}, to store.Address) {
	env, err := rpc.NewEnvelope(rpc.DirectionResponse, typ, payload)
	if err != nil {
		e.logger.Error("failed to encode response", "type", typ, "err", err)
		return
	}
	e.send(env, to)
}

// broadcast sends a request payload to every peer.
func (e *Engine) broadcast(typ rpc.Type, payload interface{}) {
	env, err := rpc.NewEnvelope(rpc.DirectionRequest, typ, payload)
	if err != nil {
		e.logger.Error("failed to encode request", "type", typ, "err", err)
		return
	}
	for _, peer := range e.cfg.Peers {
		e.send(env, peer)
	}
}

// ApplyCommits advances lastApplied toward commitIndex, writing each newly
// committed entry's key/value pair into the database.
func (e *Engine) ApplyCommits() error {
	for e.lastApplied < e.commitIndex {
		entry, ok := e.store.GetEntry(e.lastApplied + 1)
		if !ok {
			// commitIndex is clamped to the log length everywhere it moves.
			return errors.NewConsensusError("commit index points past the log")
		}
		if err := e.store.ApplyKV(entry.Key, entry.Value); err != nil {
			return err
		}
		e.lastApplied++
		e.logger.Info("applied entry", "index", entry.Index, "key", entry.Key)
	}
	return nil
}
