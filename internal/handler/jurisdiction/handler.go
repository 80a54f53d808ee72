package jurisdiction

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/med-assist/backend/internal/model/jurisdiction"
	"github.com/zhouzirui/med-assist/backend/pkg/utils"
)

// Handler 急救电话地区处理器
type Handler struct {
	store jurisdiction.Store
}

// New 创建地区处理器
func New(store jurisdiction.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册地区相关路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/jurisdictions", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"default": h.store.Default().Code,
		"items":   h.store.List(),
	})
}
