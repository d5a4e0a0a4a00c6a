package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorPreservesAppError(t *testing.T) {
	dup := NewDuplicateMessageError("wamid.42")
	wrapped := fmt.Errorf("admission: %w", dup)

	got := FromError(wrapped)
	assert.Equal(t, CodeDuplicateMessage, got.Code)
	assert.Equal(t, http.StatusOK, got.StatusCode, "a duplicate is acknowledged, not rejected")

	details, ok := got.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "wamid.42", details["message_id"])
}

func TestFromErrorWrapsPlainError(t *testing.T) {
	got := FromError(fmt.Errorf("connection reset"))

	assert.Equal(t, CodeServerError, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.StatusCode)
	assert.Equal(t, "connection reset", got.Message)
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", NewHandlerFailureError("TRANSFER_CONFIRM", fmt.Errorf("boom")))

	assert.True(t, Is(err, NewError(0, CodeHandlerFailure, "")))
	assert.False(t, Is(err, NewError(0, CodeDeliveryFailure, "")))
	assert.False(t, Is(fmt.Errorf("plain"), NewError(0, CodeHandlerFailure, "")))
}

func TestTaxonomyStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, NewMalformedInputError("missing msisdn").StatusCode)
	assert.Equal(t, http.StatusBadGateway, NewDeliveryFailureError(fmt.Errorf("timeout")).StatusCode)
	assert.Equal(t, http.StatusNotFound, NewNotFoundError(CodeSessionNotFound, "gone").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, NewUnauthorizedError(CodeAuthRequired, "login first").StatusCode)
}
