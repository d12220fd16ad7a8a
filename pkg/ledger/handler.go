package ledger

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
	"github.com/smartspend/smartspend/pkg/user"
)

type TransactionDTO struct {
	Id              string    `json:"id"`
	UserId          string    `json:"userId"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Type            string    `json:"type"`
	Description     string    `json:"description"`
	Merchant        string    `json:"merchant,omitempty"`
	Date            time.Time `json:"date"`
	CategoryId      string    `json:"categoryId,omitempty"`
	CategoryName    string    `json:"categoryName,omitempty"`
	RecurringPlanId string    `json:"recurringPlanId,omitempty"`
	IsAiGenerated   bool      `json:"isAiGenerated"`
	ConfidenceScore *float64  `json:"confidenceScore,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type CreateTransactionDTO struct {
	UserId          string          `json:"userId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Type            string          `json:"type"`
	Description     string          `json:"description"`
	Merchant        string          `json:"merchant"`
	Date            *time.Time      `json:"date"`
	Category        string          `json:"category"`
	IsAiGenerated   bool            `json:"isAiGenerated"`
	ConfidenceScore *float64        `json:"confidenceScore"`
}

func TransactionToDTO(t Transaction) TransactionDTO {
	return TransactionDTO{
		Id:              t.Id,
		UserId:          t.UserId,
		Amount:          t.Amount.InexactFloat64(),
		Currency:        t.Currency,
		Type:            string(t.Type),
		Description:     t.Description,
		Merchant:        t.Merchant,
		Date:            t.Date,
		CategoryId:      t.CategoryId,
		CategoryName:    t.CategoryName,
		RecurringPlanId: t.RecurringPlanId,
		IsAiGenerated:   t.IsAiGenerated,
		ConfidenceScore: t.ConfidenceScore,
		CreatedAt:       t.CreatedAt,
	}
}

func TransactionsToDTO(transactions []Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(transactions))
	for _, t := range transactions {
		dtos = append(dtos, TransactionToDTO(t))
	}
	return dtos
}

type Handler struct {
	service Service
	clock   utils.Clock
}

func NewHandler(service Service, clock utils.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

// CreateTransaction godoc
// @Summary Record a manual transaction
// @Tags Transactions
// @Accept json
// @Produce json
// @Param transaction body CreateTransactionDTO true "Transaction"
// @Success 201 {object} TransactionDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /transactions [post]
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating transaction")
	var dto CreateTransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	userId, err := user.ResolveId(r.Context(), dto.UserId)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}

	created, err := h.service.CreateTransaction(r.Context(), userId, CreateTransactionRequest{
		Amount:          dto.Amount,
		Currency:        dto.Currency,
		Type:            dto.Type,
		Description:     dto.Description,
		Merchant:        dto.Merchant,
		Date:            dto.Date,
		Category:        dto.Category,
		IsAiGenerated:   dto.IsAiGenerated,
		ConfidenceScore: dto.ConfidenceScore,
	}, h.clock.Now())
	if err != nil {
		if errors.Is(err, ErrInvalidTransaction) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid transaction", err.Error())
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, TransactionToDTO(created))
}

// ListTransactions godoc
// @Summary List the caller's transactions, newest first
// @Tags Transactions
// @Produce json
// @Success 200 {array} TransactionDTO
// @Router /transactions [get]
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	transactions, err := h.service.ListTransactions(r.Context(), userId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rest.WriteJSON(w, http.StatusOK, TransactionsToDTO(transactions))
}

// DeleteTransaction godoc
// @Summary Delete one of the caller's transactions
// @Tags Transactions
// @Param transactionId path string true "Transaction ID"
// @Success 204
// @Failure 404 {string} string "Transaction not found"
// @Router /transactions/{transactionId} [delete]
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	id := mux.Vars(r)["transactionId"]
	if err := h.service.DeleteTransaction(r.Context(), userId, id); err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
