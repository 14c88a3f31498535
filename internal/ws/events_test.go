package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"message","to":2,"content":"hi","message_type":"text","reply_to_message_id":7,"temp_id":"tmp-1"}`))
	require.NoError(t, err)

	msg, ok := ev.(*ChatMessage)
	require.True(t, ok)
	assert.Equal(t, int64(2), msg.To)
	assert.Equal(t, "hi", *msg.Content)
	assert.Equal(t, int64(7), *msg.ReplyToMessageID)
	assert.JSONEq(t, `"tmp-1"`, string(msg.TempID))
	assert.Equal(t, TypeMessage, Kind(ev))
}

// Every handled kind names at least one required field, so a bare tag is
// never enough.
func TestDecodeBareTag(t *testing.T) {
	for typ := range events {
		_, err := Decode([]byte(`{"type":"` + typ + `"}`))
		assert.ErrorIs(t, err, ErrMalformed, typ)
	}
}

func TestDecodeUnrecognized(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"dance","to":2}`))
	require.NoError(t, err)
	assert.Equal(t, Unrecognized{Type: "dance"}, ev)

	ev, err = Decode([]byte(`{"to":2}`))
	require.NoError(t, err)
	assert.Equal(t, Unrecognized{Type: ""}, ev)
}

func TestDecodeMalformed(t *testing.T) {
	frames := []string{
		`not json`,
		`{"type":"message"}`,
		`{"type":"message","to":0,"content":"hi"}`,
		`{"type":"message","to":"two"}`,
		`{"type":"message","to":2,"message_type":"hologram"}`,
		`{"type":"incoming_call","to":2}`,
		`{"type":"incoming_call","to":2,"sdp":null}`,
		`{"type":"ice_candidate","to":2}`,
		`{"type":"add_reaction","message_id":3}`,
		`{"type":"edit_message","message_id":3,"content":""}`,
		`{"type":"mark_read","user_id":1}`,
		`{"type":"group_message","content":"hi"}`,
	}
	for _, frame := range frames {
		_, err := Decode([]byte(frame))
		assert.ErrorIs(t, err, ErrMalformed, frame)
	}
}

func TestDecodeOpaquePayload(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"ice_candidate","to":2,"candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMLineIndex":0}}`))
	require.NoError(t, err)
	ice := ev.(*ICECandidate)
	assert.JSONEq(t, `{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMLineIndex":0}`, string(ice.Candidate))

	ev, err = Decode([]byte(`{"type":"incoming_call","to":2,"sdp":"v=0","call_type":"audio"}`))
	require.NoError(t, err)
	call := ev.(*IncomingCall)
	assert.JSONEq(t, `"v=0"`, string(call.SDP))
	assert.Equal(t, "audio", call.CallType)
}
