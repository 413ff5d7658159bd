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

package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestRaftKVErrorBasic(t *testing.T) {
	err := NewProtocolError("bad envelope")

	if err.Code != ErrCodeProtocol {
		t.Errorf("Expected code %d, got %d", ErrCodeProtocol, err.Code)
	}
	if err.Category != CategoryProtocol {
		t.Errorf("Expected category %s, got %s", CategoryProtocol, err.Category)
	}
	if !strings.Contains(err.Error(), "bad envelope") {
		t.Errorf("Expected error message to contain 'bad envelope', got: %s", err.Error())
	}
}

func TestRaftKVErrorWithDetail(t *testing.T) {
	err := NewStorageError("write failed").WithDetail("disk full")

	if err.Detail != "disk full" {
		t.Errorf("Expected detail 'disk full', got: %s", err.Detail)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Expected error to contain detail, got: %s", err.Error())
	}
}

func TestRaftKVErrorWithHint(t *testing.T) {
	err := PortNotInCluster(5001)

	userMsg := err.UserMessage()
	if !strings.Contains(userMsg, "HINT:") {
		t.Errorf("Expected user message to contain HINT, got: %s", userMsg)
	}
	if !strings.Contains(userMsg, "config.json") {
		t.Errorf("Expected hint in user message, got: %s", userMsg)
	}
}

func TestRaftKVErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewStorageError("write failed").WithCause(cause)

	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
}

func TestProtocolErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *RaftKVError
		code     ErrorCode
		category Category
	}{
		{"MalformedEnvelope", MalformedEnvelope("truncated JSON"), ErrCodeMalformedEnvelope, CategoryProtocol},
		{"MalformedPayload", MalformedPayload("AppendEntries", "missing term"), ErrCodeMalformedPayload, CategoryProtocol},
		{"UnknownRPCType", UnknownRPCType(42), ErrCodeUnknownRPCType, CategoryProtocol},
		{"NotImplemented", NotImplemented("InstallSnapshot"), ErrCodeNotImplemented, CategoryProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Expected code %d, got %d", tt.code, tt.err.Code)
			}
			if tt.err.Category != tt.category {
				t.Errorf("Expected category %s, got %s", tt.category, tt.err.Category)
			}
		})
	}
}

func TestStorageErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *RaftKVError
		code     ErrorCode
		category Category
	}{
		{"CorruptState", CorruptState("log.json", "unexpected EOF"), ErrCodeCorruptState, CategoryStorage},
		{"IOError", IOError("rename", "state.json", errors.New("EACCES")), ErrCodeIOError, CategoryStorage},
		{"TermRegression", TermRegression(5, 3), ErrCodeTermRegression, CategoryStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Expected code %d, got %d", tt.code, tt.err.Code)
			}
			if tt.err.Category != tt.category {
				t.Errorf("Expected category %s, got %s", tt.category, tt.err.Category)
			}
		})
	}
}

func TestErrorCategoryChecks(t *testing.T) {
	protoErr := NewProtocolError("test")
	consensusErr := NotLeader("Follower")
	storageErr := NewStorageError("test")

	if !IsProtocolError(protoErr) {
		t.Error("Expected IsProtocolError to return true for protocol error")
	}
	if IsProtocolError(consensusErr) {
		t.Error("Expected IsProtocolError to return false for consensus error")
	}
	if !IsConsensusError(consensusErr) {
		t.Error("Expected IsConsensusError to return true for consensus error")
	}
	if !IsStorageError(storageErr) {
		t.Error("Expected IsStorageError to return true for storage error")
	}
}

func TestGetCode(t *testing.T) {
	err := UnknownRPCType(9)
	if GetCode(err) != ErrCodeUnknownRPCType {
		t.Errorf("Expected code %d, got %d", ErrCodeUnknownRPCType, GetCode(err))
	}

	regularErr := errors.New("regular error")
	if GetCode(regularErr) != 0 {
		t.Errorf("Expected code 0 for regular error, got %d", GetCode(regularErr))
	}
}

func TestFormatError(t *testing.T) {
	kvErr := NewConsensusError("test error")
	formatted := FormatError(kvErr)
	if !strings.HasPrefix(formatted, "ERROR:") {
		t.Errorf("Expected formatted error to start with 'ERROR:', got: %s", formatted)
	}

	regularErr := errors.New("regular error")
	formatted = FormatError(regularErr)
	if !strings.Contains(formatted, "regular error") {
		t.Errorf("Expected formatted error to contain message, got: %s", formatted)
	}
}
