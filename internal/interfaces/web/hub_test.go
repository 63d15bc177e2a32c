package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinfolio/internal/domain"
)

func TestHubBroadcastsQuotes(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// connection registration happens in the handler goroutine
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, time.Second, 5*time.Millisecond)

	hub.PublishQuote(context.Background(), domain.PriceQuote{
		AssetID:   "bitcoin",
		Symbol:    "BTC",
		PriceUSD:  decimal.RequireFromString("40000.00"),
		FetchedAt: time.Now(),
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got quoteMessage
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "bitcoin", got.AssetID)
	assert.Equal(t, "40000.00", got.PriceUSD)
}

func TestHubPublishWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.PublishQuote(context.Background(), domain.PriceQuote{AssetID: "bitcoin", PriceUSD: decimal.Zero})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishQuote blocked with no clients")
	}
}
