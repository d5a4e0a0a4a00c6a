package message

import (
	"testing"
	"time"

	"banking-chatbot/engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresIdentity(t *testing.T) {
	ts := time.Now()

	_, err := New("", "m1", "sender", "rcpt", "hi", TypeText, ts, nil)
	assert.Error(t, err)

	_, err = New("s1", "", "sender", "rcpt", "hi", TypeText, ts, nil)
	assert.Error(t, err)

	_, err = New("s1", "m1", "", "rcpt", "hi", TypeText, ts, nil)
	assert.Error(t, err)
}

func TestNewRejectionsAreMalformedInput(t *testing.T) {
	_, err := New("", "m1", "sender", "rcpt", "hi", TypeText, time.Now(), nil)
	require.Error(t, err)
	appErr := errors.FromError(err)
	assert.Equal(t, errors.CodeMalformedInput, appErr.Code)
}

func TestNewDefaults(t *testing.T) {
	msg, err := New("s1", "m1", "sender", "rcpt", "hi", "", time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeText, msg.Kind)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestWithContentLeavesOriginalIntact(t *testing.T) {
	msg, err := New("s1", "m1", "sender", "rcpt", "original", TypeText, time.Now(), nil)
	require.NoError(t, err)

	clone := msg.WithContent("replayed")
	assert.Equal(t, "replayed", clone.Content)
	assert.Equal(t, "original", msg.Content)
	assert.Equal(t, msg.MessageID, clone.MessageID)
}
