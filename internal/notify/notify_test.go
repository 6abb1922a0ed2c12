package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPChatGatewaySendsExpectedPathAndBody(t *testing.T) {
	var gotPath string
	var gotBody chatMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gw := NewHTTPChatGateway(srv.URL)
	require.NoError(t, gw.SendChatMessage(context.Background(), 5, "you're invited"))

	assert.Equal(t, "/notifications/chat", gotPath)
	assert.Equal(t, int64(5), gotBody.ChatID)
	assert.Equal(t, "you're invited", gotBody.Text)
}

func TestHTTPChatGatewayPropagatesNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := NewHTTPChatGateway(srv.URL)
	err := gw.SendChatMessage(context.Background(), 5, "hello")
	assert.Error(t, err)
}
