package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/internal/service/chatlog"
	"github.com/zhouzirui/med-assist/backend/internal/service/dashboard"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
	"github.com/zhouzirui/med-assist/backend/pkg/utils"
)

// Dashboards 提供仪表盘快照和对话记录查询
type Dashboards interface {
	Snapshot(ctx context.Context) (dashboard.Dashboard, error)
	Chats(ctx context.Context, q chatlog.ListQuery) ([]chat.LogRecord, error)
}

// Handler 管理后台处理器，以 JSON 和 SSE 两种方式提供仪表盘
type Handler struct {
	dashboards Dashboards
	interval   time.Duration
}

// ChatsResponse 对话记录列表响应
type ChatsResponse struct {
	Items []chat.LogRecord `json:"items"`
}

// New 创建管理后台处理器，interval 为推送刷新间隔
func New(dashboards Dashboards, interval time.Duration) *Handler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Handler{dashboards: dashboards, interval: interval}
}

// RegisterRoutes 注册管理后台路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/dashboard", h.handleDashboard)
		r.Get("/dashboard/stream", h.handleStream)
		r.Get("/chats", h.handleChats)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dashboards.Snapshot(r.Context())
	if err != nil {
		status, msg := failure(err, "Failed to load dashboard.")
		log.FromCtx(r.Context()).Error().Err(err).Msg("dashboard snapshot failed")
		utils.RespondError(w, status, msg)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// handleStream 立即推送一次 dashboard 事件，之后按间隔推送，直到客户端断开
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	logger := log.FromCtx(ctx)

	// 建立事件流之前先以普通状态码返回错误
	snap, err := h.dashboards.Snapshot(ctx)
	if err != nil {
		status, msg := failure(err, "Failed to load dashboard.")
		logger.Error().Err(err).Msg("dashboard snapshot failed")
		utils.RespondError(w, status, msg)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "dashboard", snap); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("dashboard stream closed")
			return
		case <-ticker.C:
			snap, err := h.dashboards.Snapshot(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn().Err(err).Msg("dashboard refresh failed")
				if err := utils.SendSSEEvent(w, flusher, "error", map[string]string{"error": "dashboard refresh failed"}); err != nil {
					return
				}
				continue
			}
			if err := utils.SendSSEEvent(w, flusher, "dashboard", snap); err != nil {
				return
			}
		}
	}
}

// handleChats 按严重程度、起始时间和条数筛选对话记录，最新的在前
func (h *Handler) handleChats(w http.ResponseWriter, r *http.Request) {
	q, msg := parseChatsQuery(r)
	if msg != "" {
		utils.RespondError(w, http.StatusBadRequest, msg)
		return
	}

	records, err := h.dashboards.Chats(r.Context(), q)
	if err != nil {
		status, msg := failure(err, "Failed to load chats.")
		log.FromCtx(r.Context()).Error().Err(err).Msg("chat listing failed")
		utils.RespondError(w, status, msg)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ChatsResponse{Items: records})
}

// parseChatsQuery 解析查询参数，出错时返回提示信息
func parseChatsQuery(r *http.Request) (chatlog.ListQuery, string) {
	var q chatlog.ListQuery
	params := r.URL.Query()

	if raw := params.Get("severity"); raw != "" {
		level, ok := severity.ParseLevel(raw)
		if !ok {
			return q, "severity must be one of low, medium, high, emergency"
		}
		q.Severity = level
	}

	if raw := params.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			since, err = time.Parse(time.DateOnly, raw)
		}
		if err != nil {
			return q, "since must be an RFC 3339 timestamp or a YYYY-MM-DD date"
		}
		q.Since = since.UTC()
	}

	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return q, "limit must be a positive integer"
		}
		q.Limit = limit
	}

	return q, ""
}

func failure(err error, fallback string) (int, string) {
	if errors.Is(err, dashboard.ErrUnavailable) {
		return http.StatusServiceUnavailable, "Conversation logging is disabled, so no dashboard is available."
	}
	return http.StatusInternalServerError, fallback
}
