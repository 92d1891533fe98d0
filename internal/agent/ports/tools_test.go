package ports

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolResultErrorSerializesAsString(t *testing.T) {
	result := ToolResult{CallID: "call-1", Content: "out", Error: errors.New("boom")}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"call_id":"call-1","content":"out","error":"boom"}`, string(data))

	var decoded ToolResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, decoded.Failed())
	assert.Equal(t, "boom", decoded.Error.Error())
	assert.Equal(t, "out", decoded.Content)
}

func TestToolResultDecodesObjectError(t *testing.T) {
	// Providers report errors as {"message": ...} objects; both forms decode.
	var decoded ToolResult
	require.NoError(t, json.Unmarshal([]byte(`{"call_id":"c","error":{"message":"denied","code":403}}`), &decoded))
	require.True(t, decoded.Failed())
	assert.Equal(t, "denied", decoded.Error.Error())
}

func TestToolResultDecodesNullError(t *testing.T) {
	var decoded ToolResult
	require.NoError(t, json.Unmarshal([]byte(`{"call_id":"c","content":"ok","error":null}`), &decoded))
	assert.Nil(t, decoded.Error)
	assert.False(t, decoded.Failed())
}
