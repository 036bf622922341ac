package settlement

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/divvyhq/divvy/internal/balance"
	"github.com/divvyhq/divvy/internal/expense"
	"github.com/divvyhq/divvy/internal/group"
	"github.com/divvyhq/divvy/pkg/middleware"
	"github.com/divvyhq/divvy/pkg/response"
)

// Handler handles HTTP requests for balances and settlements
type Handler struct {
	service *Service
}

// NewHandler creates a new settlement handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for settlement endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Record)
	r.Get("/", h.List)
	r.Get("/balances", h.UserBalances)
	r.Get("/balances/suggested", h.UserSuggested)
	r.Get("/{id}", h.GetByID)

	return r
}

// Record handles POST /settlements
// @Summary      Record a settlement payment
// @Description  Record that the authenticated user paid another member back. Safe to retry with an idempotency key.
// @Tags         settlements
// @Accept       json
// @Produce      json
// @Param        request body RecordSettlementRequest true "Settlement payment"
// @Success      201 {object} response.APIResponse{data=SettlementResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /settlements [post]
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req RecordSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.GroupID == "" || req.CreditorID == "" {
		response.BadRequest(w, "group_id and creditor_id are required")
		return
	}

	result, replayed, err := h.service.Record(r.Context(), debtorID, &req)
	if err != nil {
		switch {
		case errors.Is(err, expense.ErrInvalidAmount),
			errors.Is(err, expense.ErrSelfSettlement),
			errors.Is(err, expense.ErrNotAGroupMember),
			errors.Is(err, ErrInvalidIdempotencyKey):
			response.UnprocessableEntity(w, err.Error())
		case errors.Is(err, group.ErrGroupNotFound):
			response.NotFound(w, err.Error())
		default:
			response.InternalError(w, "Failed to record settlement")
		}
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	response.JSON(w, status, result)
}

// List handles GET /settlements
// @Summary      List settlements
// @Description  List settlement payments across every group the user belongs to
// @Tags         settlements
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]SettlementResponse}
// @Router       /settlements [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	settlements, total, err := h.service.List(r.Context(), userID, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list settlements")
		return
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	totalPages := (total + perPage - 1) / perPage
	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	response.JSONWithMeta(w, http.StatusOK, settlements, meta)
}

// GetByID handles GET /settlements/{id}
// @Summary      Get a settlement
// @Tags         settlements
// @Produce      json
// @Param        id path string true "Settlement ID"
// @Success      200 {object} response.APIResponse{data=SettlementResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /settlements/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	result, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSettlementNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrNotGroupMember):
			response.Forbidden(w, err.Error())
		default:
			response.InternalError(w, "Failed to get settlement")
		}
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// UserBalances handles GET /settlements/balances
// @Summary      Get my balances
// @Description  Get the authenticated user's position across every group they belong to
// @Tags         settlements
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]MemberBalanceResponse}
// @Router       /settlements/balances [get]
func (h *Handler) UserBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	balances, err := h.service.UserBalances(r.Context(), userID)
	if err != nil {
		h.balanceError(w, err, "Failed to compute balances")
		return
	}

	response.JSON(w, http.StatusOK, balances)
}

// UserSuggested handles GET /settlements/balances/suggested
// @Summary      Get my suggested payments
// @Description  Get the simplified debt plan across every group the user belongs to
// @Tags         settlements
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]SuggestedPaymentResponse}
// @Router       /settlements/balances/suggested [get]
func (h *Handler) UserSuggested(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	debts, err := h.service.UserSuggested(r.Context(), userID)
	if err != nil {
		h.balanceError(w, err, "Failed to compute suggested payments")
		return
	}

	response.JSON(w, http.StatusOK, debts)
}

// GroupBalances handles GET /groups/{id}/balances. It lives on the settlement
// handler but is mounted inside the group router.
// @Summary      Get group balances
// @Description  Get every member's position in a group, zero balances included
// @Tags         settlements
// @Produce      json
// @Param        id path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]MemberBalanceResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{id}/balances [get]
func (h *Handler) GroupBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	balances, err := h.service.GroupBalances(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.balanceError(w, err, "Failed to compute balances")
		return
	}

	response.JSON(w, http.StatusOK, balances)
}

// GroupSuggested handles GET /groups/{id}/suggested
// @Summary      Get group suggested payments
// @Description  Get the simplified debt plan for a group
// @Tags         settlements
// @Produce      json
// @Param        id path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]SuggestedPaymentResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{id}/suggested [get]
func (h *Handler) GroupSuggested(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	debts, err := h.service.GroupSuggested(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.balanceError(w, err, "Failed to compute suggested payments")
		return
	}

	response.JSON(w, http.StatusOK, debts)
}

// balanceError maps balance computation failures to responses. Integrity
// violations are server-side data corruption, never a client error.
func (h *Handler) balanceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotGroupMember):
		response.Forbidden(w, err.Error())
	case errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, balance.ErrUnknownMember), errors.Is(err, balance.ErrUnbalancedScope):
		response.DataIntegrity(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}
