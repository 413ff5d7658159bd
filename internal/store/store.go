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
Package store implements durable persistence for a Raft node.

Persisted Files:
================

Three JSON files live in the node's data directory, each rewritten atomically
on change (write to a temp file in the same directory, fsync, rename):

  - state.json: {"current_term": N, "voted_for": {"host":..., "port":...} | null}
  - log.json:   {"log": [entry, ...]}
  - db.json:    {"db": {key: value, ...}}

Durability Contract:
====================

Every mutating operation returns only after the change has reached disk. The
hard invariants live here rather than in the consensus engine:

  - the current term never decreases;
  - advancing the term clears the recorded vote in the same durable write;
  - log indices are contiguous from 1 and an entry is only ever replaced by
    one carrying a different term, truncating the suffix behind it.

A failed write leaves the previous file contents intact. Storage errors are
fatal to the process; callers do not retry them.
*/
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"raftkv/internal/errors"
	"raftkv/internal/logging"
)

// File names inside the data directory.
const (
	StateFile = "state.json"
	LogFile   = "log.json"
	DBFile    = "db.json"
)

type persistentState struct {
	CurrentTerm uint64   `json:"current_term"`
	VotedFor    *Address `json:"voted_for"`
}

type persistentLog struct {
	Log []Entry `json:"log"`
}

type persistentDB struct {
	DB map[string]string `json:"db"`
}

// Store owns the three persisted files of a node. It is not safe for
// concurrent use; the single-threaded engine loop is its only caller.
type Store struct {
	dir    string
	state  persistentState
	log    []Entry
	db     map[string]string
	logger *logging.Logger
}

// Open loads the persisted state from dir, initializing any missing file to
// its empty value (term 0, no vote, empty log, empty database).
func Open(dir string) (*Store, error) {
	s := &Store{
		dir:    dir,
		db:     make(map[string]string),
		logger: logging.NewLogger("store"),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.IOError("mkdir", dir, err)
	}

	var st persistentState
	if ok, err := s.loadFile(StateFile, &st); err != nil {
		return nil, err
	} else if ok {
		s.state = st
	}

	var lg persistentLog
	if ok, err := s.loadFile(LogFile, &lg); err != nil {
		return nil, err
	} else if ok {
		s.log = lg.Log
	}
	for i, e := range s.log {
		if e.Index != uint64(i)+1 {
			return nil, errors.CorruptState(LogFile,
				"log indices are not contiguous from 1")
		}
	}

	var db persistentDB
	if ok, err := s.loadFile(DBFile, &db); err != nil {
		return nil, err
	} else if ok && db.DB != nil {
		s.db = db.DB
	}

	s.logger.Info("loaded persistent state",
		"term", s.state.CurrentTerm, "log_entries", len(s.log), "keys", len(s.db))
	return s, nil
}

func (s *Store) loadFile(name string, v interface{}) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.IOError("read", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.CorruptState(name, err.Error())
	}
	return true, nil
}

// writeFile atomically replaces the named file. The temp file lives in the
// same directory so the rename cannot cross filesystems.
func (s *Store) writeFile(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.IOError("encode", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp.*")
	if err != nil {
		return errors.IOError("create temp", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.IOError("write", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.IOError("sync", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.IOError("close", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.IOError("rename", name, err)
	}
	return nil
}

// CurrentTerm returns the persisted current term.
func (s *Store) CurrentTerm() uint64 {
	return s.state.CurrentTerm
}

// VotedFor returns the address voted for in the current term, or nil.
func (s *Store) VotedFor() *Address {
	if s.state.VotedFor == nil {
		return nil
	}
	addr := *s.state.VotedFor
	return &addr
}

// SetCurrentTerm advances the current term and clears the recorded vote in
// the same durable write. Terms may only move forward; a non-advancing term
// is rejected without touching disk. Returns the effective term.
func (s *Store) SetCurrentTerm(term uint64) (uint64, error) {
	if term <= s.state.CurrentTerm {
		return s.state.CurrentTerm, errors.TermRegression(s.state.CurrentTerm, term)
	}
	next := persistentState{CurrentTerm: term, VotedFor: nil}
	if err := s.writeFile(StateFile, next); err != nil {
		return s.state.CurrentTerm, err
	}
	s.state = next
	return s.state.CurrentTerm, nil
}

// SetVotedFor durably records the vote for the current term. Pass nil to
// clear it.
func (s *Store) SetVotedFor(addr *Address) error {
	next := s.state
	if addr != nil {
		a := *addr
		next.VotedFor = &a
	} else {
		next.VotedFor = nil
	}
	if err := s.writeFile(StateFile, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// LogLen returns the index of the last real entry (0 for an empty log).
func (s *Store) LogLen() uint64 {
	return uint64(len(s.log))
}

// GetEntry returns the entry at index i. Index 0 yields the sentinel; indices
// past the end yield ok=false.
func (s *Store) GetEntry(i uint64) (Entry, bool) {
	if i == 0 {
		return Sentinel, true
	}
	if i > uint64(len(s.log)) {
		return Entry{}, false
	}
	return s.log[i-1], true
}

// LastEntry returns the last entry, or the sentinel for an empty log.
func (s *Store) LastEntry() Entry {
	if len(s.log) == 0 {
		return Sentinel
	}
	return s.log[len(s.log)-1]
}

// Entries returns a copy of the log suffix starting at index from (1-based,
// inclusive). An out-of-range from yields an empty slice.
func (s *Store) Entries(from uint64) []Entry {
	if from < 1 || from > uint64(len(s.log)) {
		return nil
	}
	out := make([]Entry, uint64(len(s.log))-from+1)
	copy(out, s.log[from-1:])
	return out
}

// AppendOrReplace appends entry when it extends the log by exactly one. When
// it lands on an occupied index with a conflicting term, the suffix from that
// index on is truncated and the entry appended in its place. A same-term
// duplicate is a no-op; anything else (a gap past the end) is ignored.
func (s *Store) AppendOrReplace(entry Entry) error {
	n := uint64(len(s.log))
	switch {
	case entry.Index == n+1:
		s.log = append(s.log, entry)
	case entry.Index >= 1 && entry.Index <= n:
		if s.log[entry.Index-1].Term == entry.Term {
			return nil
		}
		s.log = append(s.log[:entry.Index-1], entry)
	default:
		return nil
	}
	if err := s.writeFile(LogFile, persistentLog{Log: s.log}); err != nil {
		// Roll back the in-memory log so memory and disk stay in agreement.
		var lg persistentLog
		if ok, loadErr := s.loadFile(LogFile, &lg); loadErr == nil && ok {
			s.log = lg.Log
		} else {
			s.log = nil
		}
		return err
	}
	return nil
}

// ApplyKV durably stores a key/value pair in the applied state machine.
func (s *Store) ApplyKV(key, value string) error {
	prev, had := s.db[key]
	s.db[key] = value
	if err := s.writeFile(DBFile, persistentDB{DB: s.db}); err != nil {
		if had {
			s.db[key] = prev
		} else {
			delete(s.db, key)
		}
		return err
	}
	return nil
}

// Get fetches a key from the applied state machine.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.db[key]
	return v, ok
}

// Keys returns all applied keys ordered by the given collator.
func (s *Store) Keys(c Collator) []string {
	keys := make([]string, 0, len(s.db))
	for k := range s.db {
		keys = append(keys, k)
	}
	SortKeys(keys, c)
	return keys
}

// Log returns a copy of the full log.
func (s *Store) Log() []Entry {
	out := make([]Entry, len(s.log))
	copy(out, s.log)
	return out
}
