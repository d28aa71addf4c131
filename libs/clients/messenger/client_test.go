package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)

		var req textMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "text", req.Type)
		require.Equal(t, "+62811111111", req.To)

		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(sendResponse{MessageID: "m-1", Status: "sent"})
	}))
	defer server.Close()

	client, err := NewWithHTTPClient(server.URL, "token", server.Client())
	require.NoError(t, err)

	err = client.SendText(context.Background(), "+62811111111", "payment received")
	assert.NoError(t, err)
}

func TestSendDocument_CachesMediaUpload(t *testing.T) {
	uploads := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		switch r.URL.Path {
		case "/v1/media":
			uploads++
			_ = json.NewEncoder(w).Encode(mediaUploadResponse{MediaID: "media-1"})
		case "/v1/messages":
			var req documentMessageRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "media-1", req.MediaID)
			_ = json.NewEncoder(w).Encode(sendResponse{MessageID: "m-2", Status: "sent"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client, err := NewWithHTTPClient(server.URL, "token", server.Client())
	require.NoError(t, err)

	doc := []byte("receipt ORD-1")
	require.NoError(t, client.SendDocument(context.Background(), "+62811111111", "receipt-ORD-1.pdf", doc))
	require.NoError(t, client.SendDocument(context.Background(), "+62811111111", "receipt-ORD-1.pdf", doc))

	// second send reuses the cached media id
	assert.Equal(t, 1, uploads)
}

func TestSendText_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewWithHTTPClient(server.URL, "token", server.Client())
	require.NoError(t, err)

	err = client.SendText(context.Background(), "+62811111111", "payment received")
	assert.Error(t, err)
}
