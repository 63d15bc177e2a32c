package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"coinfolio/internal/domain"
)

const clientSendBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type quoteMessage struct {
	AssetID  string `json:"assetId"`
	Symbol   string `json:"symbol"`
	PriceUSD string `json:"priceUsd"`
	Ts       int64  `json:"ts"`
}

// Hub broadcasts every synced quote to connected websocket clients. A slow
// client gets its pending message dropped rather than stalling the syncer.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan []byte)}
}

// PublishQuote implements port.QuotePublisher.
func (h *Hub) PublishQuote(_ context.Context, quote domain.PriceQuote) {
	msg, err := json.Marshal(quoteMessage{
		AssetID:  quote.AssetID,
		Symbol:   quote.Symbol,
		PriceUSD: quote.PriceUSD.String(),
		Ts:       quote.FetchedAt.UnixMilli(),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
		}
	}
}

// ServeHTTP upgrades the connection and streams quote messages until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	send := make(chan []byte, clientSendBuffer)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("websocket client connected")

	go h.writeLoop(conn, send)
	h.readLoop(conn)
}

func (h *Hub) writeLoop(conn *websocket.Conn, send <-chan []byte) {
	for msg := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readLoop drains control frames and detects disconnects.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
	_ = conn.Close()
}
