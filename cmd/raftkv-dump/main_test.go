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

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"raftkv/internal/compression"
	"raftkv/internal/store"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	if _, err := st.SetCurrentTerm(3); err != nil {
		t.Fatalf("SetCurrentTerm failed: %v", err)
	}
	addr := store.Address{Host: "127.0.0.1", Port: 5002}
	if err := st.SetVotedFor(&addr); err != nil {
		t.Fatalf("SetVotedFor failed: %v", err)
	}
	entries := []store.Entry{
		{Index: 1, Term: 1, Key: "x", Value: "1"},
		{Index: 2, Term: 3, Key: "y", Value: "2"},
	}
	for _, e := range entries {
		if err := st.AppendOrReplace(e); err != nil {
			t.Fatalf("AppendOrReplace failed: %v", err)
		}
		if err := st.ApplyKV(e.Key, e.Value); err != nil {
			t.Fatalf("ApplyKV failed: %v", err)
		}
	}
	return st
}

func TestBuildPayload(t *testing.T) {
	st := seedStore(t)

	payload := buildPayload(st, store.CollationBinary, "en")

	if payload.Version != dumpVersion {
		t.Errorf("Expected version %d, got %d", dumpVersion, payload.Version)
	}
	if payload.CurrentTerm != 3 {
		t.Errorf("Expected term 3, got %d", payload.CurrentTerm)
	}
	if payload.VotedFor == nil || payload.VotedFor.Port != 5002 {
		t.Errorf("Unexpected voted_for: %v", payload.VotedFor)
	}
	if len(payload.Log) != 2 {
		t.Errorf("Expected 2 log entries, got %d", len(payload.Log))
	}
	if !reflect.DeepEqual(payload.DB, map[string]string{"x": "1", "y": "2"}) {
		t.Errorf("Unexpected db: %v", payload.DB)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	st := seedStore(t)
	payload := buildPayload(st, store.CollationBinary, "en")

	path := filepath.Join(t.TempDir(), "node.dump")
	if err := writeArchive(payload, path, compression.AlgorithmZstd, true); err != nil {
		t.Fatalf("writeArchive failed: %v", err)
	}

	framed, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	compressor := compression.NewCompressor(compression.Config{
		Algorithm: compression.AlgorithmZstd,
		Level:     compression.LevelDefault,
		MinSize:   64,
	})
	data, err := compressor.Decompress(framed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}

	var restored dumpPayload
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(&restored, payload) {
		t.Errorf("Archive round trip mismatch:\n%+v\n%+v", &restored, payload)
	}
}
