package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/med-assist/backend/pkg/log"
	"github.com/zhouzirui/med-assist/backend/pkg/utils"
)

// Pinger 检查存储是否可用
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store Pinger
}

// New 创建健康检查处理器，store 可以为 nil
func New(store Pinger) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	if h.store == nil {
		utils.RespondJSON(w, http.StatusOK, body)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("store ping failed")
		body["status"] = "degraded"
		body["store"] = "unreachable"
		utils.RespondJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["store"] = "ok"
	utils.RespondJSON(w, http.StatusOK, body)
}
