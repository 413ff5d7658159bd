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
	"time"

	"raftkv/internal/rpc"
	"raftkv/internal/store"
)

// startElection begins a new election: advance the term, vote for self,
// restart the timer, and solicit votes from every peer. A candidate that
// times out runs this again with term+1.
func (e *Engine) startElection(now time.Time) error {
	term, err := e.store.SetCurrentTerm(e.store.CurrentTerm() + 1)
	if err != nil {
		return err
	}
	e.role = Candidate
	self := e.cfg.Self
	if err := e.store.SetVotedFor(&self); err != nil {
		return err
	}
	e.votes = map[store.Address]struct{}{self: {}}
	e.resetElectionTimer(now)

	last := e.store.LastEntry()
	e.logger.Info("starting election", "term", term,
		"last_log_index", last.Index, "last_log_term", last.Term)

	e.broadcast(rpc.TypeRequestVote, rpc.RequestVoteRequest{
		Term:         term,
		CandidateID:  self,
		LastLogIndex: last.Index,
		LastLogTerm:  last.Term,
	})
	return nil
}

// handleRequestVoteRequest decides a vote. The higher-term demotion already
// ran, so a request term above ours is impossible here.
func (e *Engine) handleRequestVoteRequest(req rpc.RequestVoteRequest, sender store.Address) error {
	if err := req.Validate(); err != nil {
		e.logger.Error("dropping invalid RequestVote request", "err", err)
		return nil
	}

	currentTerm := e.store.CurrentTerm()
	if req.Term < currentTerm {
		e.reply(rpc.TypeRequestVote, rpc.RequestVoteResponse{Term: currentTerm, VoteGranted: false}, sender)
		return nil
	}

	if e.grantableVote(req) {
		candidate := req.CandidateID
		if err := e.store.SetVotedFor(&candidate); err != nil {
			return err
		}
		e.resetElectionTimer(e.clock.Now())
		e.logger.Info("granted vote", "candidate", candidate, "term", currentTerm)
		e.reply(rpc.TypeRequestVote, rpc.RequestVoteResponse{Term: currentTerm, VoteGranted: true}, sender)
		return nil
	}

	e.reply(rpc.TypeRequestVote, rpc.RequestVoteResponse{Term: currentTerm, VoteGranted: false}, sender)
	return nil
}

// grantableVote applies the two vote conditions: we have not voted for
// anyone else this term, and the candidate's log is at least as up-to-date
// as ours (higher last term, or same last term and at least our length).
func (e *Engine) grantableVote(req rpc.RequestVoteRequest) bool {
	if voted := e.store.VotedFor(); voted != nil && *voted != req.CandidateID {
		return false
	}
	last := e.store.LastEntry()
	if req.LastLogTerm != last.Term {
		return req.LastLogTerm > last.Term
	}
	return req.LastLogIndex >= last.Index
}

// handleRequestVoteResponse tallies votes while campaigning. Stale-term and
// out-of-role responses are dropped without touching state.
func (e *Engine) handleRequestVoteResponse(res rpc.RequestVoteResponse, sender store.Address) {
	if e.role != Candidate {
		return
	}
	if res.Term < e.store.CurrentTerm() || !res.VoteGranted {
		return
	}

	e.votes[sender] = struct{}{}
	if 2*len(e.votes) > e.clusterSize() {
		e.becomeLeader()
	}
}

// becomeLeader initializes replication bookkeeping and asserts leadership
// with an immediate heartbeat round.
func (e *Engine) becomeLeader() {
	e.role = Leader
	e.votes = nil

	next := e.store.LogLen() + 1
	e.nextIndex = make(map[store.Address]uint64, len(e.cfg.Peers))
	e.matchIndex = make(map[store.Address]uint64, len(e.cfg.Peers))
	e.pending = make(map[store.Address]pendingReplication, len(e.cfg.Peers))
	for _, peer := range e.cfg.Peers {
		e.nextIndex[peer] = next
		e.matchIndex[peer] = 0
	}

	e.logger.Info("became leader", "term", e.store.CurrentTerm(), "log_length", e.store.LogLen())

	e.broadcastAppendEntries()
	e.resetHeartbeatTimer(e.clock.Now())
}
