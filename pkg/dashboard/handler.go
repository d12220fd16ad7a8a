package dashboard

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/smartspend/smartspend/internal/rest"
	"github.com/smartspend/smartspend/internal/utils"
	"github.com/smartspend/smartspend/pkg/user"
)

type DashboardDTO struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Income      float64   `json:"income"`
	Expense     float64   `json:"expense"`
	Savings     float64   `json:"savings"`
	SavingsRate float64   `json:"savingsRate"`
}

type TopCategoryDTO struct {
	Id     string  `json:"id,omitempty"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

type SnapshotDTO struct {
	MonthlyIncomeActual float64        `json:"monthlyIncomeActual"`
	RecurringIncome     float64        `json:"recurringIncome"`
	FixedExpenses       float64        `json:"fixedExpenses"`
	EffectiveIncome     float64        `json:"effectiveIncome"`
	AvgVariableExpenses float64        `json:"avgVariableExpenses"`
	Surplus             float64        `json:"surplus"`
	TopCategory         TopCategoryDTO `json:"topCategory"`
}

func DashboardToDTO(d Dashboard) DashboardDTO {
	return DashboardDTO{
		From:        d.From,
		To:          d.To,
		Income:      d.Income.InexactFloat64(),
		Expense:     d.Expense.InexactFloat64(),
		Savings:     d.Savings.InexactFloat64(),
		SavingsRate: d.SavingsRate.InexactFloat64(),
	}
}

func SnapshotToDTO(s Snapshot) SnapshotDTO {
	return SnapshotDTO{
		MonthlyIncomeActual: s.MonthlyIncomeActual.InexactFloat64(),
		RecurringIncome:     s.RecurringIncome.InexactFloat64(),
		FixedExpenses:       s.FixedExpenses.InexactFloat64(),
		EffectiveIncome:     s.EffectiveIncome.InexactFloat64(),
		AvgVariableExpenses: s.AvgVariableExpenses.InexactFloat64(),
		Surplus:             s.Surplus.InexactFloat64(),
		TopCategory: TopCategoryDTO{
			Id:     s.TopCategory.Id,
			Name:   s.TopCategory.Name,
			Amount: s.TopCategory.Amount.InexactFloat64(),
		},
	}
}

type Handler struct {
	service     Service
	csvRenderer SnapshotRenderer
	clock       utils.Clock
}

func NewHandler(service Service, csvRenderer SnapshotRenderer, clock utils.Clock) *Handler {
	return &Handler{service: service, csvRenderer: csvRenderer, clock: clock}
}

// GetDashboard godoc
// @Summary Income, expense and savings of the current calendar month
// @Tags Dashboard
// @Produce json
// @Param userId query string false "User ID"
// @Success 200 {object} DashboardDTO
// @Failure 400 {object} rest.ErrorResponse "Missing user"
// @Router /dashboard [get]
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	dashboard, err := h.service.ComputeDashboard(r.Context(), userId, h.clock.Now())
	if err != nil {
		log.Errorf("failed to compute dashboard: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rest.WriteJSON(w, http.StatusOK, DashboardToDTO(dashboard))
}

// GetAffordabilitySnapshot godoc
// @Summary Current financial position used for affordability questions
// @Tags Dashboard
// @Produce json,text/csv
// @Param userId query string false "User ID"
// @Success 200 {object} SnapshotDTO
// @Failure 400 {object} rest.ErrorResponse "Missing user"
// @Router /affordability-snapshot [get]
func (h *Handler) GetAffordabilitySnapshot(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	snapshot, err := h.service.ComputeAffordabilitySnapshot(r.Context(), userId, h.clock.Now())
	if err != nil {
		log.Errorf("failed to compute affordability snapshot: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if r.Header.Get("Accept") == "text/csv" {
		csv, err := h.csvRenderer.RenderSnapshot(snapshot)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(csv)); err != nil {
			log.Errorf("failed to write csv snapshot: %v", err)
		}
		return
	}
	rest.WriteJSON(w, http.StatusOK, SnapshotToDTO(snapshot))
}
