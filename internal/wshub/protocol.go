package wshub

import (
	"errors"
	"fmt"

	"northstar/internal/kvstore"
)

// Client operations.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpUpdate = "update"
	OpMulti  = "multi"
	OpRemove = "remove"
	OpSub    = "sub"
	OpUnsub  = "unsub"
)

// Server message types.
const (
	TypeReply = "reply"
	TypeValue = "value"
	TypeConn  = "conn"
)

// Error codes carried in replies so clients can map them back to sentinels.
const (
	CodeInvalidPath  = "invalid_path"
	CodeOverlapping  = "overlapping_paths"
	CodeUnavailable  = "unavailable"
	CodeBadRequest   = "bad_request"
	CodeUnknownSubID = "unknown_sub"
)

// ClientMessage is the JSON structure received from clients.
type ClientMessage struct {
	ID      string         `json:"id"`
	Op      string         `json:"op"`
	Path    string         `json:"path,omitempty"`
	Value   any            `json:"value,omitempty"`
	Updates map[string]any `json:"updates,omitempty"`
	Sub     string         `json:"sub,omitempty"`
}

// ServerMessage is the JSON structure sent to clients.
type ServerMessage struct {
	Type  string `json:"t"`
	ID    string `json:"id,omitempty"`
	OK    bool   `json:"ok,omitempty"`
	Code  string `json:"code,omitempty"`
	Err   string `json:"err,omitempty"`
	Sub   string `json:"sub,omitempty"`
	Value any    `json:"value,omitempty"`
}

// ErrorCode classifies err for the wire.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, kvstore.ErrInvalidPath):
		return CodeInvalidPath
	case errors.Is(err, kvstore.ErrOverlappingPaths):
		return CodeOverlapping
	default:
		return CodeUnavailable
	}
}

// CodeError rebuilds an error from a reply.
func CodeError(code, msg string) error {
	switch code {
	case CodeInvalidPath:
		return fmt.Errorf("%w: %s", kvstore.ErrInvalidPath, msg)
	case CodeOverlapping:
		return fmt.Errorf("%w: %s", kvstore.ErrOverlappingPaths, msg)
	default:
		return fmt.Errorf("%w: %s", kvstore.ErrUnavailable, msg)
	}
}
