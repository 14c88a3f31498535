package ws

import (
	"testing"
	"time"

	"github.com/pliu/chatvideo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleMessageTargetsReceiverThenSender(t *testing.T) {
	content := "hi"
	m := &models.Message{ID: 10, SenderID: 1, ReceiverID: 2, Content: &content, MessageType: models.MessageTypeText, CreatedAt: time.Now()}
	outs := assembleMessage(m, models.UserSummary{ID: 1, Username: "alice"}, nil, []byte(`"tmp"`))

	require.Len(t, outs, 1)
	assert.Equal(t, []int64{2, 1}, outs[0].Targets)
	env := outs[0].Envelope.(MessageEnvelope)
	assert.Equal(t, int64(1), env.From)
	assert.Equal(t, "alice", env.Sender.Username)
	assert.Equal(t, m.CreatedAt, env.Timestamp)
}

func TestAssembleReactionUpdateNotifiesBothParticipants(t *testing.T) {
	m := &models.Message{ID: 10, SenderID: 1, ReceiverID: 2}

	outs := assembleReactionUpdate(m, 2, nil)
	require.Len(t, outs, 1)
	assert.Equal(t, []int64{1, 2}, outs[0].Targets)
	env := outs[0].Envelope.(ReactionUpdate)
	assert.NotNil(t, env.Reactions, "an empty list is still a full list")
	assert.Empty(t, env.Reactions)

	outs = assembleReactionUpdate(m, 1, nil)
	assert.Equal(t, []int64{2, 1}, outs[0].Targets)
}

func TestAssembleMessagesRead(t *testing.T) {
	assert.Nil(t, assembleMessagesRead(2, 1, nil, time.Now()))

	at := time.Now()
	outs := assembleMessagesRead(2, 1, []int64{6}, at)
	require.Len(t, outs, 1)
	assert.Equal(t, []int64{1}, outs[0].Targets, "only the sender is told")
	assert.Equal(t, MessagesRead{Type: TypeMessagesRead, MessageIDs: []int64{6}, ReadAt: at, ReaderID: 2, From: 2}, outs[0].Envelope)
}

func TestAssembleEditedUsesBriefSender(t *testing.T) {
	first := "Alice"
	m := &models.Message{ID: 3, SenderID: 1, ReceiverID: 2}
	outs := assembleEdited(m, models.UserSummary{ID: 1, Username: "alice", FirstName: &first})

	env := outs[0].Envelope.(MessageEdited)
	assert.Nil(t, env.Sender.FirstName)
	assert.Equal(t, "alice", env.Sender.Username)
	assert.Equal(t, []int64{2, 1}, outs[0].Targets)
}

func TestAssembleCallDefaultsToVideo(t *testing.T) {
	outs := assembleCall(TypeCallRequest, 1, 2, "", models.UserSummary{ID: 1}, nil)
	env := outs[0].Envelope.(CallEnvelope)
	assert.Equal(t, "video", env.CallType)
	assert.Equal(t, []int64{2}, outs[0].Targets)
}

func TestAssembleGroupTypingSkipsTypist(t *testing.T) {
	outs := assembleGroupTyping(5, 1, []int64{1, 2, 3})
	require.Len(t, outs, 1)
	assert.Equal(t, []int64{2, 3}, outs[0].Targets)

	assert.Nil(t, assembleGroupTyping(5, 1, []int64{1}))
}
