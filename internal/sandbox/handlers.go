package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/securebank/txwatch/internal/domain"
	"github.com/securebank/txwatch/internal/ingestion"
	"github.com/securebank/txwatch/internal/repository"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 32 << 20
)

// Handlers groups the sandbox handler methods and their dependencies.
type Handlers struct {
	repo     *repository.TransactionRepo
	importer *ingestion.Service
	scorer   Scorer
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError uses the {"detail": ...} shape the scoring service returns.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// --- Validate ---

func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, http.StatusUnprocessableEntity, "userId is required")
		return
	}

	v, err := h.scorer.Score(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tx := domain.Transaction{
		ID:         h.newID(),
		UserID:     req.UserID,
		Amount:     req.Amount,
		Location:   req.Location,
		DeviceID:   req.DeviceID,
		Status:     v.Status,
		RiskScore:  v.RiskScore,
		Violations: v.Violations,
		CreatedAt:  h.now(),
	}
	if err := h.repo.Insert(&tx); err != nil {
		h.log.Error().Err(err).Str("user_id", tx.UserID).Msg("store transaction")
		writeError(w, http.StatusInternalServerError, "failed to store transaction")
		return
	}

	h.log.Info().
		Str("transaction_id", tx.ID).
		Str("user_id", tx.UserID).
		Str("amount", tx.Amount.StringFixed(2)).
		Str("status", string(tx.Status)).
		Int("risk_score", tx.RiskScore).
		Msg("transaction scored")

	v.TransactionID = tx.ID
	writeJSON(w, http.StatusOK, v)
}

// --- Review ---

type reviewRequest struct {
	Decision       domain.Status `json:"decision"`
	AnalystComment string        `json:"analyst_comment"`
	Analyst        string        `json:"analyst"`
}

func (h *Handlers) Review(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req reviewRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	req.Decision = domain.Status(strings.ToUpper(strings.TrimSpace(string(req.Decision))))
	if !req.Decision.Terminal() {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("decision must be %s or %s", domain.StatusApproved, domain.StatusRejected))
		return
	}
	req.Analyst = strings.TrimSpace(req.Analyst)
	if req.Analyst == "" {
		writeError(w, http.StatusUnprocessableEntity, "analyst is required")
		return
	}

	tx, err := h.repo.Review(id, req.Decision, req.Analyst, req.AnalystComment, h.now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, repository.ErrAlreadyReviewed):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.Error().Err(err).Str("transaction_id", id).Msg("review transaction")
		writeError(w, http.StatusInternalServerError, "failed to review transaction")
		return
	}

	h.log.Info().
		Str("transaction_id", tx.ID).
		Str("decision", string(tx.Status)).
		Str("analyst", tx.ReviewedBy).
		Msg("transaction reviewed")

	writeJSON(w, http.StatusOK, tx)
}

// --- Listing ---

func (h *Handlers) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.repo.ListByUser(chi.URLParam(r, "userId"))
	if err != nil {
		h.log.Error().Err(err).Msg("list user transactions")
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *Handlers) TransactionLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TransactionFilter{
		Status: strings.ToUpper(q.Get("status")),
		UserID: q.Get("user_id"),
		Limit:  parseIntDefault(q.Get("limit"), 100),
	}
	if filter.Status != "" && !domain.Status(filter.Status).Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+filter.Status)
		return
	}

	txns, err := h.repo.List(filter)
	if err != nil {
		h.log.Error().Err(err).Msg("list transaction log")
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"count":        len(txns),
	})
}

// --- Import ---

// ImportTransactions loads a JSON or CSV transaction file sent as the request
// body. ?format= selects the parser and defaults to json.
func (h *Handlers) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = ingestion.FormatJSON
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	res, err := h.importer.Import(data, format)
	switch {
	case errors.Is(err, ingestion.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}
