// ABOUTME: End-to-end tests running the HTTP client and session controller against a live gateway
// ABOUTME: Exercises login, start, continue, history bootstrap, and server error mapping over real HTTP

package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sketchbook/internal/client"
	"github.com/2389/sketchbook/internal/conversation"
	"github.com/2389/sketchbook/internal/generator"
)

func TestEndToEnd_SessionAgainstGateway(t *testing.T) {
	gw, ms := newTestGateway(t)
	seedUser(t, gw, ms, "arnold", false)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	ctx := t.Context()
	c := client.New(srv.URL)
	token, err := c.Login(ctx, "arnold", testPassword)
	require.NoError(t, err)
	c.SetToken(token)

	session := conversation.NewSession(c)
	defer session.Close()
	require.NoError(t, session.Bootstrap(ctx))
	assert.Empty(t, session.Turns())

	sketch := conversation.Image{Data: sketchPNG(t), MIMEType: "image/png", Filename: "bus.png"}
	first, err := session.StartSession(ctx, sketch, "a school bus")
	require.NoError(t, err)
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, generator.EchoTextPrefix+"a school bus", first.ModelResponseText)

	session.SetContinueDraft("make it fly")
	second, err := session.ContinueSession(ctx, "make it fly")
	require.NoError(t, err)
	assert.Equal(t, first.OutputImage, second.InputImage)

	turns := session.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, []string{"1", "2"}, []string{turns[0].ID, turns[1].ID})
	assert.False(t, session.State().Busy())

	// A fresh session sees the same history.
	reloaded := conversation.NewSession(c)
	defer reloaded.Close()
	require.NoError(t, reloaded.Bootstrap(ctx))
	assert.Equal(t, turns, reloaded.Turns())
}

func TestEndToEnd_ServerErrorsReachSession(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("provider down")}
	gw, ms := newTestGateway(t, WithGenerator(gen))
	token, _ := seedUser(t, gw, ms, "arnold", false)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	session := conversation.NewSession(client.New(srv.URL, client.WithToken(token)))
	defer session.Close()

	sketch := conversation.Image{Data: sketchPNG(t), MIMEType: "image/png"}
	_, err := session.StartSession(t.Context(), sketch, "a bus")

	var serverErr *conversation.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusBadGateway, serverErr.StatusCode)
	assert.Equal(t, "Image generation failed", serverErr.Message)
	assert.Empty(t, session.Turns())
	assert.NotEmpty(t, session.State().StartError)
}

func TestEndToEnd_UnauthorizedClient(t *testing.T) {
	gw, _ := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	_, err := client.New(srv.URL, client.WithToken("not-a-jwt")).FetchHistory(t.Context())

	var serverErr *conversation.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusUnauthorized, serverErr.StatusCode)
	assert.Equal(t, "invalid token", serverErr.Message)
}

func TestGateway_ServeAndShutdown(t *testing.T) {
	gw, _ := newTestGateway(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("gateway did not shut down")
	}
}
