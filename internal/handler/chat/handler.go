package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/internal/model/jurisdiction"
	"github.com/zhouzirui/med-assist/backend/internal/service/ai"
	chatService "github.com/zhouzirui/med-assist/backend/internal/service/chat"
	"github.com/zhouzirui/med-assist/backend/internal/service/ratelimit"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
	"github.com/zhouzirui/med-assist/backend/pkg/utils"
)

const maxBodyBytes = 1 << 20

// Handler 聊天服务的HTTP与websocket处理器
type Handler struct {
	chatSvc    *chatService.Service
	production bool
	upgrader   websocket.Upgrader
}

// New 创建聊天处理器。生产环境下错误响应不携带 details；
// allowedOrigins 与 CORS 使用同一份白名单，"*" 或空表示不限制。
func New(chatSvc *chatService.Service, production bool, allowedOrigins []string) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		production: production,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// originChecker 校验 websocket 握手的 Origin。没有 Origin 的请求来自非浏览器客户端，直接放行。
func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := len(allowed) == 0 || slices.Contains(allowed, "*")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		return slices.ContainsFunc(allowed, func(o string) bool {
			return strings.EqualFold(strings.TrimSpace(o), origin)
		})
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/ws", h.handleWebSocket)
}

// Payload 客户端请求体
type Payload struct {
	Question    string      `json:"question"`
	IsEmergency bool        `json:"isEmergency"`
	ChatHistory []chat.Turn `json:"chatHistory"`
	Region      string      `json:"region"`
}

func (p Payload) toRequest(clientID string) chat.Request {
	return chat.Request{
		Question:    p.Question,
		IsEmergency: p.IsEmergency,
		History:     p.ChatHistory,
		ClientID:    clientID,
		Region:      p.Region,
	}
}

// ErrorBody 聊天请求失败时的响应体，始终附带急救电话
type ErrorBody struct {
	Error            string                `json:"error"`
	EmergencyNumbers []jurisdiction.Number `json:"emergencyNumbers"`
	Details          string                `json:"details,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	clientID := ratelimit.ClientID(r)

	var payload Payload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		h.respondError(w, r, h.rejectMalformed(clientID, err), "")
		return
	}

	resp, err := h.chatSvc.Handle(r.Context(), payload.toRequest(clientID))
	if err != nil {
		h.respondError(w, r, err, payload.Region)
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// rejectMalformed 先扣减限流额度再报告解析错误，保证限流始终先于校验。
func (h *Handler) rejectMalformed(clientID string, cause error) error {
	if !h.chatSvc.Admit(clientID) {
		return chatService.ErrRateLimited
	}
	return &chatService.ValidationError{
		Reason: malformedReason(cause),
		Cause:  cause,
	}
}

// malformedReason 为类型错误的字段给出具体提示，其余解析错误沿用问题字段的提示。
func malformedReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" && typeErr.Field != "question" {
		return fmt.Sprintf("field %s must be %s", typeErr.Field, jsonKind(typeErr.Type))
	}
	return "question is required and must be a string"
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "a valid value"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "a boolean"
	case reflect.String:
		return "a string"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.Int, reflect.Int64, reflect.Float32, reflect.Float64:
		return "a number"
	default:
		return "a valid value"
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error, region string) {
	status, body := h.errorBody(err, region)
	if status >= http.StatusInternalServerError {
		log.FromCtx(r.Context()).Error().Err(err).Int("status", status).Msg("chat request failed")
	}
	utils.RespondJSON(w, status, body)
}

func (h *Handler) errorBody(err error, region string) (int, ErrorBody) {
	j := h.chatSvc.Jurisdiction(region)
	body := ErrorBody{EmergencyNumbers: j.EmergencyNumbers}

	var (
		status int
		verr   *chatService.ValidationError
	)
	switch {
	case errors.Is(err, chatService.ErrRateLimited):
		status = http.StatusTooManyRequests
		body.Error = "Rate limit exceeded. Please wait before making another request."
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body.Error = capitalize(verr.Reason) + "."
	case errors.Is(err, chatService.ErrValidation):
		status = http.StatusBadRequest
		body.Error = "Your request could not be understood. Please try again."
	case errors.Is(err, ai.ErrNotConfigured):
		status = http.StatusInternalServerError
		body.Error = "The assistant is not available right now. If this is an emergency, please call " + j.NumbersText() + "."
	default:
		status = http.StatusInternalServerError
		body.Error = "Sorry, we could not generate an answer right now. Please try again shortly. If this is an emergency, please call " + j.NumbersText() + "."
	}

	if !h.production {
		body.Details = err.Error()
	}
	return status, body
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
