package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSendSignsBody(t *testing.T) {
	var (
		gotBody []byte
		gotSig  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, "s3cret", zerolog.Nop())
	require.NoError(t, hook.Send(context.Background(), "blast.finished", map[string]int{"sent": 3}))

	assert.Equal(t, Sign("s3cret", gotBody), gotSig)

	var payload struct {
		Event string         `json:"event"`
		Data  map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "blast.finished", payload.Event)
	assert.Equal(t, 3, payload.Data["sent"])
}

func TestWebhookSendReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "", zerolog.Nop()).Send(context.Background(), "x", nil)
	assert.ErrorContains(t, err, "502")
}

func TestWebhookDisabled(t *testing.T) {
	var hook *Webhook
	assert.False(t, hook.Enabled())
	assert.NoError(t, hook.Send(context.Background(), "x", nil))
	assert.NoError(t, NewWebhook("", "k", zerolog.Nop()).Send(context.Background(), "x", nil))
}
