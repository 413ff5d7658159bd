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
Package errors provides comprehensive error handling for RaftKV.

The errors package implements a structured error system with:
  - Error categories (Protocol, Consensus, Transport, Storage, Config)
  - Error codes for programmatic handling
  - User-friendly error messages
  - Contextual information for debugging
  - Error wrapping for root cause analysis

Error Categories:
  - ProtocolError: wire envelope and RPC payload decode failures
  - ConsensusError: Raft protocol-level rejections and violations
  - TransportError: datagram socket failures
  - StorageError: persistence failures (always fatal to the process)
  - ConfigError: configuration loading and validation failures
*/
package errors

import (
	"fmt"
)

// ErrorCode represents a unique error identifier.
type ErrorCode int

const (
	// Protocol errors (1000-1999)
	ErrCodeProtocol          ErrorCode = 1000
	ErrCodeMalformedEnvelope ErrorCode = 1001
	ErrCodeMalformedPayload  ErrorCode = 1002
	ErrCodeUnknownRPCType    ErrorCode = 1003
	ErrCodeNotImplemented    ErrorCode = 1004
	ErrCodeInvalidDirection  ErrorCode = 1005

	// Consensus errors (2000-2999)
	ErrCodeConsensus         ErrorCode = 2000
	ErrCodeNotLeader         ErrorCode = 2001
	ErrCodeStaleTerm         ErrorCode = 2002
	ErrCodeLogMismatch       ErrorCode = 2003
	ErrCodeNonMonotonicBatch ErrorCode = 2004

	// Transport errors (3000-3999)
	ErrCodeTransport  ErrorCode = 3000
	ErrCodeBindFailed ErrorCode = 3001
	ErrCodeSendFailed ErrorCode = 3002

	// Storage errors (5000-5999)
	ErrCodeStorage        ErrorCode = 5000
	ErrCodeCorruptState   ErrorCode = 5001
	ErrCodeIOError        ErrorCode = 5003
	ErrCodeTermRegression ErrorCode = 5004

	// Config errors (6000-6999)
	ErrCodeConfig           ErrorCode = 6000
	ErrCodeInvalidValue     ErrorCode = 6001
	ErrCodeValueOutOfRange  ErrorCode = 6002
	ErrCodePortNotInCluster ErrorCode = 6003
	ErrCodeMissingRequired  ErrorCode = 6004
)

// Category represents the error category.
type Category string

const (
	CategoryProtocol  Category = "PROTOCOL"
	CategoryConsensus Category = "CONSENSUS"
	CategoryTransport Category = "TRANSPORT"
	CategoryStorage   Category = "STORAGE"
	CategoryConfig    Category = "CONFIG"
)

// RaftKVError represents a structured error in RaftKV.
type RaftKVError struct {
	Code     ErrorCode
	Category Category
	Message  string
	Detail   string
	Hint     string
	Cause    error
}

// Error implements the error interface.
func (e *RaftKVError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ERROR %d (%s): %s - %s", e.Code, e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("ERROR %d (%s): %s", e.Code, e.Category, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RaftKVError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly error message.
func (e *RaftKVError) UserMessage() string {
	msg := fmt.Sprintf("ERROR: %s", e.Message)
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	if e.Hint != "" {
		msg += fmt.Sprintf("\nHINT: %s", e.Hint)
	}
	return msg
}

// WithDetail adds detail to the error.
func (e *RaftKVError) WithDetail(detail string) *RaftKVError {
	e.Detail = detail
	return e
}

// WithHint adds a hint to the error.
func (e *RaftKVError) WithHint(hint string) *RaftKVError {
	e.Hint = hint
	return e
}

// WithCause adds a cause to the error.
func (e *RaftKVError) WithCause(cause error) *RaftKVError {
	e.Cause = cause
	return e
}

// ============================================================================
// Protocol Error Constructors
// ============================================================================

// NewProtocolError creates a new protocol error.
func NewProtocolError(message string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeProtocol,
		Category: CategoryProtocol,
		Message:  message,
	}
}

// MalformedEnvelope creates an error for undecodable wire envelopes.
func MalformedEnvelope(detail string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeMalformedEnvelope,
		Category: CategoryProtocol,
		Message:  "malformed RPC envelope",
		Detail:   detail,
	}
}

// MalformedPayload creates an error for undecodable RPC payloads.
func MalformedPayload(rpcName, detail string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeMalformedPayload,
		Category: CategoryProtocol,
		Message:  fmt.Sprintf("malformed %s payload", rpcName),
		Detail:   detail,
	}
}

// UnknownRPCType creates an error for out-of-range RPC type tags.
func UnknownRPCType(typeTag int) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeUnknownRPCType,
		Category: CategoryProtocol,
		Message:  fmt.Sprintf("unknown RPC type: %d", typeTag),
	}
}

// NotImplemented creates an error for reserved but unimplemented RPC types.
func NotImplemented(rpcName string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeNotImplemented,
		Category: CategoryProtocol,
		Message:  fmt.Sprintf("%s RPC is not implemented", rpcName),
	}
}

// ============================================================================
// Consensus Error Constructors
// ============================================================================

// NewConsensusError creates a new consensus error.
func NewConsensusError(message string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeConsensus,
		Category: CategoryConsensus,
		Message:  message,
	}
}

// NotLeader creates an error for leader-only operations on a non-leader.
func NotLeader(role string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeNotLeader,
		Category: CategoryConsensus,
		Message:  "not the leader",
		Detail:   fmt.Sprintf("current role is %s", role),
	}
}

// NonMonotonicBatch creates an error for AppendEntries batches whose entry
// indices do not increase by exactly one.
func NonMonotonicBatch(detail string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeNonMonotonicBatch,
		Category: CategoryConsensus,
		Message:  "entry batch indices are not strictly monotonic",
		Detail:   detail,
	}
}

// ============================================================================
// Transport Error Constructors
// ============================================================================

// NewTransportError creates a new transport error.
func NewTransportError(message string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeTransport,
		Category: CategoryTransport,
		Message:  message,
	}
}

// BindFailed creates an error for socket bind failures.
func BindFailed(addr string, cause error) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeBindFailed,
		Category: CategoryTransport,
		Message:  fmt.Sprintf("failed to bind datagram socket on %s", addr),
		Hint:     "Check that the port is free and that you may bind to it",
		Cause:    cause,
	}
}

// ============================================================================
// Storage Error Constructors
// ============================================================================

// NewStorageError creates a new storage error.
func NewStorageError(message string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeStorage,
		Category: CategoryStorage,
		Message:  message,
	}
}

// CorruptState creates an error for undecodable persisted files.
func CorruptState(file, detail string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeCorruptState,
		Category: CategoryStorage,
		Message:  fmt.Sprintf("persisted state file corrupted: %s", file),
		Detail:   detail,
		Hint:     "Restore the file from backup or remove it to reinitialize the node",
	}
}

// IOError creates an error for failed persistence writes.
func IOError(op, file string, cause error) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeIOError,
		Category: CategoryStorage,
		Message:  fmt.Sprintf("%s failed for %s", op, file),
		Cause:    cause,
	}
}

// TermRegression creates an error for attempts to lower the persisted term.
func TermRegression(current, proposed uint64) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeTermRegression,
		Category: CategoryStorage,
		Message:  "current term may never decrease",
		Detail:   fmt.Sprintf("current term %d, proposed %d", current, proposed),
	}
}

// ============================================================================
// Config Error Constructors
// ============================================================================

// NewConfigError creates a new config error.
func NewConfigError(message string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeConfig,
		Category: CategoryConfig,
		Message:  message,
	}
}

// InvalidValue creates an error for invalid configuration values.
func InvalidValue(field, reason string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeInvalidValue,
		Category: CategoryConfig,
		Message:  fmt.Sprintf("invalid value for '%s'", field),
		Detail:   reason,
	}
}

// PortNotInCluster creates an error for a server port missing from config.json.
func PortNotInCluster(port uint16) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodePortNotInCluster,
		Category: CategoryConfig,
		Message:  fmt.Sprintf("port %d is not listed in the cluster configuration", port),
		Hint:     "Add the port to the \"ports\" array in config.json",
	}
}

// MissingRequired creates an error for missing required fields.
func MissingRequired(field string) *RaftKVError {
	return &RaftKVError{
		Code:     ErrCodeMissingRequired,
		Category: CategoryConfig,
		Message:  fmt.Sprintf("missing required field: %s", field),
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// IsProtocolError checks if an error is a protocol error.
func IsProtocolError(err error) bool {
	if e, ok := err.(*RaftKVError); ok {
		return e.Category == CategoryProtocol
	}
	return false
}

// IsConsensusError checks if an error is a consensus error.
func IsConsensusError(err error) bool {
	if e, ok := err.(*RaftKVError); ok {
		return e.Category == CategoryConsensus
	}
	return false
}

// IsStorageError checks if an error is a storage error. Storage errors are
// fatal: callers are expected to log and exit rather than continue.
func IsStorageError(err error) bool {
	if e, ok := err.(*RaftKVError); ok {
		return e.Category == CategoryStorage
	}
	return false
}

// GetCode returns the error code if it's a RaftKVError, or 0 otherwise.
func GetCode(err error) ErrorCode {
	if e, ok := err.(*RaftKVError); ok {
		return e.Code
	}
	return 0
}

// FormatError formats an error for user display.
func FormatError(err error) string {
	if e, ok := err.(*RaftKVError); ok {
		return e.UserMessage()
	}
	return fmt.Sprintf("ERROR: %v", err)
}
