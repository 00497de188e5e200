package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"diary-backend/application/services"
	"diary-backend/domain/core/valueobjects"
	"diary-backend/pkg/auth"
	"diary-backend/pkg/common"
	pkgerrors "diary-backend/pkg/errors"
	"diary-backend/pkg/utils"
)

const maxBodyBytes = 64 << 10

// DegradedHeader is set on advice responses that fell back to the empty shape
const DegradedHeader = "X-Analysis-Degraded"

// DiaryHandler handles diary entry and advice HTTP requests
type DiaryHandler struct {
	diary        *services.DiaryService
	orchestrator *services.AnalysisOrchestrator
	errors       *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewDiaryHandler creates a new diary handler
func NewDiaryHandler(
	diary *services.DiaryService,
	orchestrator *services.AnalysisOrchestrator,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *DiaryHandler {
	return &DiaryHandler{
		diary:        diary,
		orchestrator: orchestrator,
		errors:       errorHandler,
		logger:       logger,
	}
}

// SaveEntryRequest represents the request body for saving an entry
type SaveEntryRequest struct {
	Date     string `json:"date" validate:"required,diarydate"`
	Contents string `json:"contents" validate:"required"`
}

// UpdateEntryRequest represents the request body for editing an entry
type UpdateEntryRequest struct {
	Contents string `json:"contents" validate:"required"`
}

// EntryResponse is the body of GET /diary/{date}. A missing entry is
// reported with a null id and empty contents.
type EntryResponse struct {
	DiaryID  *int64 `json:"diary_id"`
	Contents string `json:"contents"`
}

// MonthDatesResponse lists the dates of a month that have an entry
type MonthDatesResponse struct {
	Dates []valueobjects.DiaryDate `json:"dates"`
}

// SaveEntry handles POST /diary
func (h *DiaryHandler) SaveEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req SaveEntryRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	date, err := valueobjects.ParseDiaryDate(req.Date)
	if err != nil {
		h.errors.Handle(w, r, invalidDate(err))
		return
	}

	result, err := h.diary.SaveEntry(r.Context(), userID, date, req.Contents)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	common.RespondJSON(w, status, result)
}

// GetEntry handles GET /diary/{date}
func (h *DiaryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	date, ok := h.pathDate(w, r)
	if !ok {
		return
	}

	entry, err := h.diary.GetEntry(r.Context(), userID, date)
	if pkgerrors.IsNotFound(err) {
		common.RespondJSON(w, http.StatusOK, EntryResponse{})
		return
	}
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, EntryResponse{DiaryID: &entry.ID, Contents: entry.Text})
}

// UpdateEntry handles PUT /diary/entries/{entryID}
func (h *DiaryHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	entryID, ok := h.pathEntryID(w, r)
	if !ok {
		return
	}

	var req UpdateEntryRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.diary.UpdateEntry(r.Context(), userID, entryID, req.Contents); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// DeleteEntry handles DELETE /diary/entries/{entryID}
func (h *DiaryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	entryID, ok := h.pathEntryID(w, r)
	if !ok {
		return
	}

	if err := h.diary.DeleteEntry(r.Context(), userID, entryID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// GetAdvice handles GET /diary/{date}/advice. It always answers 200 with a
// well-formed result; failures are logged and flagged in DegradedHeader.
func (h *DiaryHandler) GetAdvice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	date, ok := h.pathDate(w, r)
	if !ok {
		return
	}

	result, err := h.orchestrator.GetEmotionAdvice(r.Context(), userID, date)
	if err != nil {
		w.Header().Set(DegradedHeader, "true")
		if pkgerrors.IsRetryable(err) {
			w.Header().Set("Retry-After", "5")
		}
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// Reanalyze handles POST /diary/{date}/analysis
func (h *DiaryHandler) Reanalyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	date, ok := h.pathDate(w, r)
	if !ok {
		return
	}

	result, err := h.orchestrator.Reanalyze(r.Context(), userID, date)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// GetMonthDates handles GET /diary/months/{year}/{month}
func (h *DiaryHandler) GetMonthDates(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	year, yearErr := strconv.Atoi(chi.URLParam(r, "year"))
	month, monthErr := strconv.Atoi(chi.URLParam(r, "month"))
	if yearErr != nil || monthErr != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("year and month must be numbers").
			WithCode(pkgerrors.CodeInvalidDate))
		return
	}

	dates, err := h.diary.GetMonthDates(r.Context(), userID, year, time.Month(month))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, MonthDatesResponse{Dates: dates})
}

func (h *DiaryHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError(""))
		return 0, false
	}
	return user.UserID, true
}

func (h *DiaryHandler) pathDate(w http.ResponseWriter, r *http.Request) (valueobjects.DiaryDate, bool) {
	date, err := valueobjects.ParseDiaryDate(chi.URLParam(r, "date"))
	if err != nil {
		h.errors.Handle(w, r, invalidDate(err))
		return valueobjects.DiaryDate{}, false
	}
	return date, true
}

func (h *DiaryHandler) pathEntryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err == nil {
		err = utils.ValidateVar("entry id", entryID, "gt=0")
	}
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("entry id must be a positive number"))
		return 0, false
	}
	return entryID, true
}

func invalidDate(err error) error {
	return pkgerrors.NewValidationError("date must be formatted YYYY.MM.DD").
		WithCode(pkgerrors.CodeInvalidDate).
		WithCause(err)
}
