package serialization_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/riptide/pkg/bulk/support/util/serialization"
)

type tokenPayload struct {
	LastKey string `json:"last_key"`
	Started bool   `json:"started"`
}

func TestEncodeDecodeToken(t *testing.T) {
	token, err := serialization.EncodeToken(tokenPayload{LastKey: "pkg-0042", Started: true})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	var decoded tokenPayload
	require.NoError(t, serialization.DecodeToken(token, &decoded))
	assert.Equal(t, "pkg-0042", decoded.LastKey)
	assert.True(t, decoded.Started)
}

func TestEncodeTokenNilPayload(t *testing.T) {
	token, err := serialization.EncodeToken(nil)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestDecodeTokenEmptyLeavesPayloadUntouched(t *testing.T) {
	decoded := tokenPayload{LastKey: "unchanged"}
	require.NoError(t, serialization.DecodeToken("", &decoded))
	assert.Equal(t, "unchanged", decoded.LastKey)
}

func TestDecodeTokenInvalidBase64(t *testing.T) {
	var decoded tokenPayload
	err := serialization.DecodeToken("not!!valid//base64", &decoded)
	assert.Error(t, err)
}

func TestDecodeTokenInvalidJSON(t *testing.T) {
	// Valid base64 of a non-JSON payload.
	var decoded tokenPayload
	err := serialization.DecodeToken("bm90LWpzb24", &decoded)
	assert.Error(t, err)
}

func TestLogEntriesRoundTrip(t *testing.T) {
	type entry struct {
		Timestamp time.Time `json:"timestamp"`
		Message   string    `json:"message"`
	}

	entries := []entry{
		{Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), Message: "first"},
		{Timestamp: time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC), Message: "second"},
	}

	data, err := serialization.MarshalLogEntries(entries)
	require.NoError(t, err)

	var decoded []entry
	require.NoError(t, serialization.UnmarshalLogEntries(data, &decoded))
	assert.Equal(t, entries, decoded)
}

func TestMarshalLogEntriesNil(t *testing.T) {
	data, err := serialization.MarshalLogEntries(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestUnmarshalLogEntriesEmpty(t *testing.T) {
	var decoded []struct{}
	require.NoError(t, serialization.UnmarshalLogEntries(nil, &decoded))
	require.NoError(t, serialization.UnmarshalLogEntries([]byte("null"), &decoded))
	assert.Empty(t, decoded)
}
