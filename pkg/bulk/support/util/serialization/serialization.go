// Package serialization provides helpers for serializing the data structures the
// bulk engine persists between steps: resume tokens and job log entries.
//
// Resume tokens are opaque to everything except the record source that minted
// them. The helpers here give sources a uniform envelope (JSON payload,
// URL-safe base64 text) so tokens survive any text-based persistence layer
// unmodified.
package serialization

import (
	"encoding/base64"
	"encoding/json"

	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
)

const module = "serialization"

// EncodeToken serializes an arbitrary token payload into an opaque,
// URL-safe string. A nil payload encodes to the empty token.
func EncodeToken(payload interface{}) (string, error) {
	if payload == nil {
		return "", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", exception.NewBulkError(module, "failed to serialize resume token payload", err, false)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken deserializes an opaque token string produced by EncodeToken into
// the given payload pointer. The empty token leaves the payload untouched.
func DecodeToken(token string, payload interface{}) error {
	if token == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return exception.NewBulkError(module, "resume token is not valid base64", err, false)
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return exception.NewBulkError(module, "failed to deserialize resume token payload", err, false)
	}
	return nil
}

// MarshalLogEntries serializes job log entries into a JSON byte slice.
// A nil slice marshals to an empty JSON array.
func MarshalLogEntries(entries interface{}) ([]byte, error) {
	if entries == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, exception.NewBulkError(module, "failed to serialize log entries", err, false)
	}
	return data, nil
}

// UnmarshalLogEntries deserializes a JSON byte slice into the given log entry
// slice pointer. Empty input yields an empty slice.
func UnmarshalLogEntries(data []byte, entries interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, entries); err != nil {
		return exception.NewBulkError(module, "failed to deserialize log entries", err, false)
	}
	return nil
}
