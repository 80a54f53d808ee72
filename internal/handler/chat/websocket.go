package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/med-assist/backend/internal/service/ratelimit"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 对连接上收到的每个 "chat" 帧执行聊天流程，帧按顺序逐个处理
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := ratelimit.ClientID(r)
	logger := log.FromCtx(r.Context()).With().Str("client", clientID).Logger()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go pingLoop(ctx, conn)

	logger.Debug().Msg("websocket connected")
	h.send(ctx, conn, "connected", map[string]any{
		"jurisdiction": h.chatSvc.Jurisdiction("").Code,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "chat":
			h.handleChatFrame(ctx, conn, clientID, msg.Data)
		case "ping":
			h.send(ctx, conn, "pong", nil)
		default:
			h.send(ctx, conn, "error", ErrorBody{
				Error:            "unsupported message type: " + msg.Type,
				EmergencyNumbers: h.chatSvc.Jurisdiction("").EmergencyNumbers,
			})
		}
	}
}

func (h *Handler) handleChatFrame(ctx context.Context, conn *websocket.Conn, clientID string, raw json.RawMessage) {
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		_, body := h.errorBody(h.rejectMalformed(clientID, err), "")
		h.send(ctx, conn, "error", body)
		return
	}

	resp, err := h.chatSvc.Handle(ctx, payload.toRequest(clientID))
	if err != nil {
		status, body := h.errorBody(err, payload.Region)
		if status >= http.StatusInternalServerError {
			log.FromCtx(ctx).Error().Err(err).Int("status", status).Msg("websocket chat failed")
		}
		h.send(ctx, conn, "error", body)
		return
	}
	h.send(ctx, conn, "answer", resp)
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, kind string, data interface{}) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	msg := outgoingMessage{Type: kind, Data: data, Timestamp: time.Now().Unix()}
	if err := conn.WriteJSON(msg); err != nil {
		log.FromCtx(ctx).Debug().Err(err).Str("type", kind).Msg("websocket write failed")
	}
}

// pingLoop 定期发送 ping 保持连接。WriteControl 可与 WriteJSON 并发调用
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
