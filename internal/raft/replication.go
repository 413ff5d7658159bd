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
	"raftkv/internal/errors"
	"raftkv/internal/rpc"
	"raftkv/internal/store"
)

// Propose appends a key/value write to the leader's log and replicates it
// immediately. Followers must redirect writes to the leader.
func (e *Engine) Propose(key, value string) error {
	if e.role != Leader {
		return errors.NotLeader(e.role.String())
	}

	entry := store.Entry{
		Index: e.store.LogLen() + 1,
		Term:  e.store.CurrentTerm(),
		Key:   key,
		Value: value,
	}
	if err := e.store.AppendOrReplace(entry); err != nil {
		return err
	}
	e.logger.Info("proposed entry", "index", entry.Index, "term", entry.Term, "key", key)

	e.broadcastAppendEntries()
	e.resetHeartbeatTimer(e.clock.Now())
	return nil
}

// broadcastAppendEntries sends each peer its tailored AppendEntries request,
// recording the (prevLogIndex, count) pair so the bare success reply can
// advance matchIndex later.
func (e *Engine) broadcastAppendEntries() {
	if e.role != Leader {
		return
	}

	term := e.store.CurrentTerm()
	for _, peer := range e.cfg.Peers {
		next := e.nextIndex[peer]
		prev, ok := e.store.GetEntry(next - 1)
		if !ok {
			// nextIndex is clamped to [1, len(log)+1]; prev is always resolvable.
			e.logger.Error("nextIndex points past the log", "peer", peer, "next", next)
			continue
		}
		entries := e.store.Entries(next)

		e.pending[peer] = pendingReplication{
			prevLogIndex: prev.Index,
			count:        uint64(len(entries)),
		}

		env, err := rpc.NewEnvelope(rpc.DirectionRequest, rpc.TypeAppendEntries, rpc.AppendEntriesRequest{
			Term:              term,
			LeaderID:          e.cfg.Self,
			PrevLogIndex:      prev.Index,
			PrevLogTerm:       prev.Term,
			Entries:           entries,
			LeaderCommitIndex: e.commitIndex,
		})
		if err != nil {
			e.logger.Error("failed to encode AppendEntries", "peer", peer, "err", err)
			continue
		}
		e.send(env, peer)
	}
}

// handleAppendEntriesRequest applies the leader's instruction to the local
// log. The higher-term demotion already ran, so req.Term is at most ours.
func (e *Engine) handleAppendEntriesRequest(req rpc.AppendEntriesRequest, sender store.Address) error {
	currentTerm := e.store.CurrentTerm()

	if req.Term < currentTerm {
		e.reply(rpc.TypeAppendEntries, rpc.AppendEntriesResponse{Term: currentTerm, Success: false}, sender)
		return nil
	}

	// A same-term AppendEntries means the cluster already has a leader for
	// this term; a campaigning candidate stands down.
	if e.role == Candidate {
		e.becomeFollower()
	} else if e.role == Leader {
		// Two leaders in one term would violate election safety. Refuse the
		// request and keep the evidence in the log.
		e.logger.Error("received AppendEntries from another leader in our term",
			"term", currentTerm, "from", sender)
		e.reply(rpc.TypeAppendEntries, rpc.AppendEntriesResponse{Term: currentTerm, Success: false}, sender)
		return nil
	}

	e.resetElectionTimer(e.clock.Now())

	if err := req.Validate(); err != nil {
		e.logger.Error("rejecting malformed AppendEntries batch", "err", err)
		e.reply(rpc.TypeAppendEntries, rpc.AppendEntriesResponse{Term: currentTerm, Success: false}, sender)
		return nil
	}

	prev, ok := e.store.GetEntry(req.PrevLogIndex)
	if !ok || prev.Term != req.PrevLogTerm {
		e.logger.Debug("log mismatch", "prev_index", req.PrevLogIndex,
			"prev_term", req.PrevLogTerm, "log_length", e.store.LogLen())
		e.reply(rpc.TypeAppendEntries, rpc.AppendEntriesResponse{Term: currentTerm, Success: false}, sender)
		return nil
	}

	for _, entry := range req.Entries {
		if err := e.store.AppendOrReplace(entry); err != nil {
			return err
		}
	}

	if req.LeaderCommitIndex > e.commitIndex {
		e.commitIndex = min(req.LeaderCommitIndex, e.store.LogLen())
	}

	e.reply(rpc.TypeAppendEntries, rpc.AppendEntriesResponse{Term: currentTerm, Success: true}, sender)
	return nil
}

// handleAppendEntriesResponse advances or backs off per-peer replication
// state. Responses without a pending record (duplicates, or sent before a
// role change) are dropped.
func (e *Engine) handleAppendEntriesResponse(res rpc.AppendEntriesResponse, sender store.Address) {
	if e.role != Leader {
		return
	}
	if res.Term < e.store.CurrentTerm() {
		return
	}

	sent, ok := e.pending[sender]
	if !ok {
		return
	}
	delete(e.pending, sender)

	if res.Success {
		e.matchIndex[sender] = sent.prevLogIndex + sent.count
		e.nextIndex[sender] = e.matchIndex[sender] + 1
		e.advanceCommitIndex()
		return
	}

	if e.nextIndex[sender] > 1 {
		e.nextIndex[sender]--
	}
}

// advanceCommitIndex moves commitIndex to the largest majority-replicated
// index. Only entries of the current term may be counted; older entries
// commit indirectly when a current-term entry behind them commits.
func (e *Engine) advanceCommitIndex() {
	currentTerm := e.store.CurrentTerm()
	for n := e.store.LogLen(); n > e.commitIndex; n-- {
		entry, ok := e.store.GetEntry(n)
		if !ok {
			return
		}
		if entry.Term != currentTerm {
			// Terms only decrease toward the front of the log; nothing
			// below n can be a current-term entry either.
			return
		}
		replicas := 1 // the leader holds every entry
		for _, peer := range e.cfg.Peers {
			if e.matchIndex[peer] >= n {
				replicas++
			}
		}
		if 2*replicas > e.clusterSize() {
			e.logger.Info("advancing commit index", "from", e.commitIndex, "to", n)
			e.commitIndex = n
			return
		}
	}
}
