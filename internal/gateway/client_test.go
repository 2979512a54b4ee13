package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	payload := []byte(`{"to":"5511999999999","body":"ola"}`)
	sig := Sign(payload, "secret-1")

	assert.NoError(t, VerifySignature(sig, payload, "secret-1"))
	assert.Error(t, VerifySignature(sig, payload, "secret-2"))
	assert.Error(t, VerifySignature(sig, []byte(`{"tampered":true}`), "secret-1"))
}

func TestVerifySignatureFormat(t *testing.T) {
	assert.Error(t, VerifySignature("", []byte("x"), "s"))
	assert.Error(t, VerifySignature("sha256=", []byte("x"), "s"))
	assert.Error(t, VerifySignature("md5=abcdef", []byte("x"), "s"))
}

func TestSendSignsAndParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/7/messages", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.NoError(t, VerifySignature(r.Header.Get("X-Hub-Signature-256"), body, "secret-1"))

		var req sendRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "5511999999999", req.To)
		assert.Equal(t, "ola", req.Body)

		json.NewEncoder(w).Encode(sendResponse{MessageID: "gw-msg-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-1")

	id, err := c.Send(context.Background(), 7, "5511999999999", "ola")
	require.NoError(t, err)
	assert.Equal(t, "gw-msg-1", id)
}

func TestSendGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-1")

	_, err := c.Send(context.Background(), 7, "5511999999999", "ola")
	assert.Error(t, err)
}

func TestSendMissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-1")

	_, err := c.Send(context.Background(), 7, "5511999999999", "ola")
	assert.Error(t, err)
}
