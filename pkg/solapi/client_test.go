package solapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSuccess(t *testing.T) {
	var gotAuth string
	var gotReq sendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages/v4/send", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sendResponse{
			MessageID:  "M4V20250825000000ABCDEF",
			StatusCode: "2000",
		})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	msgID, err := client.Send(context.Background(), "tenant-token", Message{
		To:   "01011112222",
		From: "0215771577",
		Text: "delivered",
		Type: TypeSMS,
	})
	require.NoError(t, err)
	assert.Equal(t, "M4V20250825000000ABCDEF", msgID)
	assert.Equal(t, "Bearer tenant-token", gotAuth)
	assert.Equal(t, "01011112222", gotReq.Message.To)
	assert.Equal(t, TypeSMS, gotReq.Message.Type)
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse{
			ErrorCode:    "ValidationError",
			ErrorMessage: "to is not a valid phone number",
		})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Send(context.Background(), "tenant-token", Message{To: "bogus"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
	assert.Equal(t, "ValidationError", apiErr.Code)
}

func TestSendContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Send(ctx, "tenant-token", Message{To: "01011112222"})
	assert.Error(t, err)
}
