package matching

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Urigo/accounter-fullstack-sub017/internal/platform/httpx"
)

// Handler manages matching endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers matching routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/charges/{chargeID}/status", h.status)
	r.Get("/charges/{chargeID}/candidates", h.candidates)
	r.Post("/charges/{chargeID}/match", h.assign)
}

type candidateResponse struct {
	ChargeID      string  `json:"charge_id"`
	DocumentID    *string `json:"document_id,omitempty"`
	TransactionID *string `json:"transaction_id,omitempty"`
	Confidence    float64 `json:"confidence"`
	DateProximity float64 `json:"date_proximity"`
	Date          string  `json:"date"`
	Reference     string  `json:"reference,omitempty"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

type assignRequest struct {
	DocumentID    string `json:"document_id" validate:"omitempty,uuid"`
	TransactionID string `json:"transaction_id" validate:"omitempty,uuid"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	chargeID, err := uuid.Parse(chi.URLParam(r, "chargeID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid charge id")
		return
	}
	status, err := h.service.Status(r.Context(), chargeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"charge_id": chargeID.String(), "status": string(status)})
}

func (h *Handler) candidates(w http.ResponseWriter, r *http.Request) {
	chargeID, err := uuid.Parse(chi.URLParam(r, "chargeID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid charge id")
		return
	}
	candidates, err := h.service.Candidates(r.Context(), chargeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]candidateResponse, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, candidateResponse{
			ChargeID:      cand.ChargeID.String(),
			DocumentID:    uuidString(cand.DocumentID),
			TransactionID: uuidString(cand.TransactionID),
			Confidence:    cand.Confidence,
			DateProximity: cand.DateProximity,
			Date:          cand.Date.Format(time.DateOnly),
			Reference:     cand.Reference,
			Amount:        cand.Amount,
			Currency:      cand.Currency,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	chargeID, err := uuid.Parse(chi.URLParam(r, "chargeID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid charge id")
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if (req.DocumentID == "") == (req.TransactionID == "") {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "exactly one of document_id or transaction_id is required")
		return
	}

	if req.DocumentID != "" {
		documentID, err := uuid.Parse(req.DocumentID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id")
			return
		}
		err = h.service.AssignDocument(r.Context(), chargeID, documentID)
		if err != nil {
			h.respondError(w, err)
			return
		}
	} else {
		transactionID, err := uuid.Parse(req.TransactionID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transaction id")
			return
		}
		err = h.service.AssignTransaction(r.Context(), chargeID, transactionID)
		if err != nil {
			h.respondError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrChargeNotFound), errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrTransactionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyMatched), errors.Is(err, ErrNoMatchableData):
		httpx.Problem(w, http.StatusConflict, "Precondition Failed", err.Error())
	default:
		h.logger.Error("matching request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
