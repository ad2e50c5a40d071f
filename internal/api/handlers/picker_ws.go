package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wonny/kritika/internal/annotator"
	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/internal/picker"
	"github.com/wonny/kritika/internal/session"
	"github.com/wonny/kritika/pkg/logger"
)

const (
	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	maxMessageSize = 4096
	outboxSize     = 32

	// selections per second a client may send
	selectRate  = 4
	selectBurst = 8
)

// Message types on the picker socket
const (
	MsgSelect    = "select"
	MsgSelection = "selection"
	MsgError     = "error"
)

// PickerMessage is one frame on the picker socket, both directions
type PickerMessage struct {
	Type      string            `json:"type"`
	Ticker    string            `json:"ticker,omitempty"`
	Exchange  string            `json:"exchange,omitempty"`
	Selection *picker.Selection `json:"selection,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// PickerHandler streams selection state over a websocket.
// Each connection gets its own picker.Selector.
type PickerHandler struct {
	quotes    contracts.QuoteSource
	records   picker.RecordLookup
	annotator *annotator.Annotator
	cfg       picker.Config
	upgrader  websocket.Upgrader
	logger    *logger.Logger

	wg sync.WaitGroup
}

// NewPickerHandler creates the picker websocket handler
func NewPickerHandler(quotes contracts.QuoteSource, records picker.RecordLookup, a *annotator.Annotator, cfg picker.Config, log *logger.Logger) *PickerHandler {
	return &PickerHandler{
		quotes:    quotes,
		records:   records,
		annotator: a,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log.Component("picker_ws"),
	}
}

// Serve upgrades the connection and runs the select/selection loop
// GET /ws/picker
func (h *PickerHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()

	// the connection outlives the upgrade request; keep only its session
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if s, ok := session.FromContext(r.Context()); ok {
		ctx = session.NewContext(ctx, s)
	}

	selector := picker.New(h.quotes, h.records, h.annotator, h.cfg, h.logger)
	out := make(chan PickerMessage, outboxSize)

	push := func(msg PickerMessage) {
		select {
		case out <- msg:
		default:
			h.logger.Warn("Picker outbox full, dropping message")
		}
	}

	unsubscribe := selector.OnUpdate(func(sel picker.Selection) {
		s := sel
		push(PickerMessage{Type: MsgSelection, Selection: &s})
	})

	writerDone := make(chan struct{})
	go h.writeLoop(ctx, conn, out, writerDone)

	h.readLoop(ctx, conn, selector, push)

	unsubscribe()
	selector.Close()
	cancel()
	<-writerDone
	conn.Close()
}

func (h *PickerHandler) readLoop(ctx context.Context, conn *websocket.Conn, selector *picker.Selector, push func(PickerMessage)) {
	limiter := rate.NewLimiter(rate.Limit(selectRate), selectBurst)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("Picker socket closed unexpectedly")
			}
			return
		}

		var msg PickerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			push(PickerMessage{Type: MsgError, Error: "invalid message"})
			continue
		}
		if msg.Type != MsgSelect || msg.Ticker == "" {
			push(PickerMessage{Type: MsgError, Error: "expected {\"type\":\"select\",\"ticker\":...}"})
			continue
		}
		if !limiter.Allow() {
			push(PickerMessage{Type: MsgError, Error: "rate limited"})
			continue
		}

		if _, err := selector.Select(ctx, msg.Ticker, msg.Exchange); err != nil {
			return
		}
	}
}

func (h *PickerHandler) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan PickerMessage, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.WithError(err).Debug("Picker socket write failed")
				// unblock the reader
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// Wait blocks until every open picker connection has finished
func (h *PickerHandler) Wait() {
	h.wg.Wait()
}
