package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chetanK28/planning-poker/internal/types"
)

func TestUsername(t *testing.T) {
	t.Run("extracts the username from the connection identity", func(t *testing.T) {
		cm := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			client: &Client{
				identity: types.Identity{Username: "alice", Role: types.RoleFacilitator},
			},
		}

		assert.Equal(t, "alice", cm.Username(), "expected username to come from the client identity")
	})

	t.Run("no client attached", func(t *testing.T) {
		cm := &ClientMessage{}
		assert.Equal(t, "", cm.Username(), "expected empty username without a client")
	})
}

func TestNoErrOk(t *testing.T) {
	expected := &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        1,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         types.Room{Id: "room1"},
		},
	}

	result := NoErrOK(1, types.Room{Id: "room1"})

	assert.NotNil(t, result, "expected result to be non-nil")
	assert.NotNil(t, result.Response, "expected response to be non-nil")
	assert.Equal(t, expected.Id, result.Id, "expected Id to match")
	assert.WithinDuration(t, expected.Timestamp, result.Timestamp, time.Duration(time.Second), "expected Timestamp to be within 1 second")
	assert.Equal(t, expected.Response.ResponseCode, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Equal(t, expected.Response.Data, result.Response.Data, "expected Data to match")
}

func TestNoErrAccepted(t *testing.T) {
	result := NoErrAccepted(1)

	assert.NotNil(t, result, "expected result to be non-nil")
	assert.NotNil(t, result.Response, "expected response to be non-nil")
	assert.Equal(t, 1, result.Id, "expected Id to match")
	assert.WithinDuration(t, Now(), result.Timestamp, time.Duration(time.Second), "expected Timestamp to be within 1 second")
	assert.Equal(t, http.StatusAccepted, result.Response.ResponseCode, "expected ResponseCode to match")
}

func TestErrRoomNotFound(t *testing.T) {
	result := ErrRoomNotFound(1)

	assert.NotNil(t, result, "expected result to be non-nil")
	assert.NotNil(t, result.Response, "expected response to be non-nil")
	assert.Equal(t, 1, result.Id, "expected Id to match")
	assert.Equal(t, http.StatusNotFound, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Equal(t, "room not found", result.Response.Error, "expected Error message to match")
}

func TestErrForbidden(t *testing.T) {
	result := ErrForbidden(1)

	assert.NotNil(t, result, "expected result to be non-nil")
	assert.NotNil(t, result.Response, "expected response to be non-nil")
	assert.Equal(t, 1, result.Id, "expected Id to match")
	assert.Equal(t, http.StatusForbidden, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Equal(t, "forbidden", result.Response.Error, "expected Error message to match")
}

func TestErrInternalError(t *testing.T) {
	result := ErrInternalError(1)

	assert.NotNil(t, result, "expected result to be non-nil")
	assert.NotNil(t, result.Response, "expected response to be non-nil")
	assert.Equal(t, 1, result.Id, "expected Id to match")
	assert.Equal(t, http.StatusInternalServerError, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Equal(t, "internal server error", result.Response.Error, "expected Error message to match")
}

func TestErrServiceUnavailable(t *testing.T) {
	result := ErrServiceUnavailable(1)

	assert.NotNil(t, result, "expected result to be non-nil")
	assert.NotNil(t, result.Response, "expected response to be non-nil")
	assert.Equal(t, 1, result.Id, "expected Id to match")
	assert.Equal(t, http.StatusServiceUnavailable, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Equal(t, "service unavailable", result.Response.Error, "expected Error message to match")
}

func TestErrInvalidMessage(t *testing.T) {
	result := ErrInvalidMessage(0)
	assert.NotNil(t, result, "expected result to be non-nil")
	assert.NotNil(t, result.Response, "expected response to be non-nil")
	assert.Equal(t, 0, result.Id, "expected Id to be zero")
	assert.Equal(t, http.StatusBadRequest, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Equal(t, "invalid message format", result.Response.Error, "expected Error message to match")

	// when id > 0, it should be set
	resultWithId := ErrInvalidMessage(42)
	assert.Equal(t, 42, resultWithId.Id, "expected Id to match")
}
