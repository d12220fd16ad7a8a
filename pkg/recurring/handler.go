package recurring

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/smartspend/smartspend/internal/rest"
	"github.com/smartspend/smartspend/internal/utils"
	"github.com/smartspend/smartspend/pkg/ledger"
	"github.com/smartspend/smartspend/pkg/user"
)

type PlanDTO struct {
	Id          string    `json:"id"`
	UserId      string    `json:"userId"`
	Name        string    `json:"name"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Frequency   string    `json:"frequency"`
	Type        string    `json:"type"`
	Category    string    `json:"category,omitempty"`
	NextDueDate time.Time `json:"nextDueDate"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreatePlanDTO struct {
	UserId    string          `json:"userId"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Frequency string          `json:"frequency"`
	Type      string          `json:"type"`
	Category  string          `json:"category"`
}

func PlanToDTO(plan ledger.RecurringPlan) PlanDTO {
	return PlanDTO{
		Id:          plan.Id,
		UserId:      plan.UserId,
		Name:        plan.Name,
		Amount:      plan.Amount.InexactFloat64(),
		Currency:    plan.Currency,
		Frequency:   string(plan.Frequency),
		Type:        string(plan.Type),
		Category:    plan.Category,
		NextDueDate: plan.NextDueDate,
		IsActive:    plan.IsActive,
		CreatedAt:   plan.CreatedAt,
	}
}

type Handler struct {
	service Service
	clock   utils.Clock
}

func NewHandler(service Service, clock utils.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

// CreatePlan godoc
// @Summary Create a recurring plan
// @Description Registers a plan and records its first occurrence immediately
// @Tags Recurring
// @Accept json
// @Produce json
// @Param plan body CreatePlanDTO true "Recurring plan"
// @Success 201 {object} PlanDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /recurring [post]
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating recurring plan")
	var dto CreatePlanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	userId, err := user.ResolveId(r.Context(), dto.UserId)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}

	plan, err := h.service.CreatePlan(r.Context(), CreatePlanRequest{
		UserId:    userId,
		Name:      dto.Name,
		Amount:    dto.Amount,
		Currency:  dto.Currency,
		Frequency: dto.Frequency,
		Type:      dto.Type,
		Category:  dto.Category,
	}, h.clock.Now())
	if err != nil {
		if errors.Is(err, ErrInvalidPlan) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid recurring plan", err.Error())
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, PlanToDTO(plan))
}

// ListPlans godoc
// @Summary List active recurring plans, newest first
// @Tags Recurring
// @Produce json
// @Success 200 {array} PlanDTO
// @Router /recurring [get]
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	plans, err := h.service.ListPlans(r.Context(), userId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]PlanDTO, 0, len(plans))
	for _, plan := range plans {
		dtos = append(dtos, PlanToDTO(plan))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// DeactivatePlan godoc
// @Summary Stop a recurring plan
// @Tags Recurring
// @Param planId path string true "Plan ID"
// @Success 204
// @Failure 404 {string} string "Plan not found"
// @Router /recurring/{planId} [delete]
func (h *Handler) DeactivatePlan(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	planId := mux.Vars(r)["planId"]
	if err := h.service.DeactivatePlan(r.Context(), userId, planId); err != nil {
		if errors.Is(err, ledger.ErrPlanNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPlanTransactions godoc
// @Summary List the transactions generated by a plan
// @Tags Recurring
// @Produce json
// @Param planId path string true "Plan ID"
// @Success 200 {array} ledger.TransactionDTO
// @Failure 404 {string} string "Plan not found"
// @Router /recurring/{planId}/transactions [get]
func (h *Handler) ListPlanTransactions(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	transactions, err := h.service.ListPlanTransactions(r.Context(), userId, mux.Vars(r)["planId"])
	if err != nil {
		if errors.Is(err, ledger.ErrPlanNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ledger.TransactionsToDTO(transactions))
}
