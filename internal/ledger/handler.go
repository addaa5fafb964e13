package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Urigo/accounter-fullstack-sub017/internal/platform/httpx"
	"github.com/Urigo/accounter-fullstack-sub017/internal/shared"
)

// Handler manages ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/charges/{chargeID}/generate", h.generate)
	r.Post("/charges/{chargeID}/preview", h.preview)
	r.Delete("/charges/{chargeID}", h.deleteCharge)
}

type generateRequest struct {
	Force bool `json:"force"`
}

type entryProtoResponse struct {
	InvoiceDate        string   `json:"invoice_date"`
	ValueDate          string   `json:"value_date"`
	Currency           string   `json:"currency"`
	CreditAccountID1   *string  `json:"credit_account_id1,omitempty"`
	CreditAccountID2   *string  `json:"credit_account_id2,omitempty"`
	DebitAccountID1    *string  `json:"debit_account_id1,omitempty"`
	DebitAccountID2    *string  `json:"debit_account_id2,omitempty"`
	CreditAmount1      *float64 `json:"credit_amount1,omitempty"`
	CreditAmount2      *float64 `json:"credit_amount2,omitempty"`
	DebitAmount1       *float64 `json:"debit_amount1,omitempty"`
	DebitAmount2       *float64 `json:"debit_amount2,omitempty"`
	LocalCreditAmount1 float64  `json:"local_credit_amount1"`
	LocalCreditAmount2 float64  `json:"local_credit_amount2"`
	LocalDebitAmount1  float64  `json:"local_debit_amount1"`
	LocalDebitAmount2  float64  `json:"local_debit_amount2"`
	ExchangeRate       float64  `json:"exchange_rate,omitempty"`
	Description        string   `json:"description"`
	Reference          string   `json:"reference,omitempty"`
}

type generateResponse struct {
	ChargeID   string               `json:"charge_id"`
	Balanced   bool                 `json:"balanced"`
	BalanceSum float64              `json:"balance_sum"`
	Unbalanced []string             `json:"unbalanced_business_ids,omitempty"`
	Errors     []string             `json:"errors,omitempty"`
	Persisted  bool                 `json:"persisted"`
	Records    []entryProtoResponse `json:"records"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	h.runGeneration(w, r, true)
}

// preview runs the full generation pipeline without touching storage.
func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	h.runGeneration(w, r, false)
}

func (h *Handler) runGeneration(w http.ResponseWriter, r *http.Request, persist bool) {
	chargeID, err := uuid.Parse(chi.URLParam(r, "chargeID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid charge id")
		return
	}

	var req generateRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}

	result, err := h.service.Generate(r.Context(), chargeID, GenerateOptions{Persist: persist, Force: req.Force})
	if err != nil {
		h.respondError(w, r, chargeID, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGenerateResponse(result))
}

func (h *Handler) deleteCharge(w http.ResponseWriter, r *http.Request) {
	chargeID, err := uuid.Parse(chi.URLParam(r, "chargeID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid charge id")
		return
	}
	if err := h.service.DeleteChargeState(r.Context(), chargeID); err != nil {
		h.respondError(w, r, chargeID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, chargeID uuid.UUID, err error) {
	var vErr *ValidationError
	switch {
	case errors.Is(err, ErrChargeNotFound), errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "charge not found")
	case errors.Is(err, shared.ErrChargeBusy):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &vErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", vErr.Error())
	case errors.Is(err, ErrUnsupportedKind):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("ledger request failed",
			slog.String("charge_id", chargeID.String()),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toGenerateResponse(result GeneratedLedger) generateResponse {
	resp := generateResponse{
		ChargeID:   result.ChargeID.String(),
		Balanced:   result.Balance.IsBalanced,
		BalanceSum: result.Balance.BalanceSum,
		Errors:     result.Errors,
		Persisted:  result.Persisted,
		Records:    make([]entryProtoResponse, 0, len(result.Protos)),
	}
	for _, id := range result.Balance.UnbalancedBusinessIDs {
		resp.Unbalanced = append(resp.Unbalanced, id.String())
	}
	for _, p := range result.Protos {
		resp.Records = append(resp.Records, entryProtoResponse{
			InvoiceDate:        p.InvoiceDate.Format(time.DateOnly),
			ValueDate:          p.ValueDate.Format(time.DateOnly),
			Currency:           string(p.Currency),
			CreditAccountID1:   uuidString(p.CreditAccountID1),
			CreditAccountID2:   uuidString(p.CreditAccountID2),
			DebitAccountID1:    uuidString(p.DebitAccountID1),
			DebitAccountID2:    uuidString(p.DebitAccountID2),
			CreditAmount1:      p.CreditAmount1,
			CreditAmount2:      p.CreditAmount2,
			DebitAmount1:       p.DebitAmount1,
			DebitAmount2:       p.DebitAmount2,
			LocalCreditAmount1: p.LocalCreditAmount1,
			LocalCreditAmount2: p.LocalCreditAmount2,
			LocalDebitAmount1:  p.LocalDebitAmount1,
			LocalDebitAmount2:  p.LocalDebitAmount2,
			ExchangeRate:       p.ExchangeRate,
			Description:        p.Description,
			Reference:          p.Reference,
		})
	}
	return resp
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
