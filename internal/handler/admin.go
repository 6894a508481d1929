package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/library-system/internal/middleware"
	"github.com/mmeshcher/library-system/internal/model"
	"github.com/mmeshcher/library-system/internal/repository"
)

type bookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	Description string `json:"description"`
	TotalCopies int    `json:"total_copies"`
}

func (req *bookRequest) valid() bool {
	return req.Title != "" && req.Author != "" && req.Category != "" && req.TotalCopies >= 1
}

type createBookResponse struct {
	ID int64 `json:"id"`
}

// CreateBook добавляет книгу в каталог.
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !req.valid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateBook(r.Context(), model.Book{
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		Description: req.Description,
		TotalCopies: req.TotalCopies,
	})
	if err != nil {
		h.logger.Error("create book error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(createBookResponse{ID: id}); err != nil {
		h.logger.Error("encode create book response error", zap.Error(err))
	}
}

// UpdateBook обновляет карточку книги.
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !req.valid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err = h.service.UpdateBook(r.Context(), model.Book{
		ID:          bookID,
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		Description: req.Description,
		TotalCopies: req.TotalCopies,
	})
	if err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update book error", zap.Error(err), zap.Int64("bookID", bookID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteBook удаляет книгу из каталога.
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteBook(r.Context(), bookID); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrBookHasLoans):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("delete book error", zap.Error(err), zap.Int64("bookID", bookID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AdminReturnLoan принимает возврат любого займа от имени администратора.
func (h *Handler) AdminReturnLoan(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	loanID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.returnLoan(w, r, loanID, adminID, true)
}

// GetAllLoans возвращает список всех займов для админ-панели.
func (h *Handler) GetAllLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.GetAllLoans(r.Context())
	if err != nil {
		h.logger.Error("get all loans error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(loans) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		resp = append(resp, toLoanResponse(l))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type statsResponse struct {
	TotalBooks     int64   `json:"total_books"`
	TotalMembers   int64   `json:"total_members"`
	TotalIssued    int64   `json:"total_issued"`
	TotalReturned  int64   `json:"total_returned"`
	PendingReturns int64   `json:"pending_returns"`
	TotalFine      float64 `json:"total_fine"`
}

// GetStats возвращает показатели административной панели.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.logger.Error("get stats error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statsResponse{
		TotalBooks:     stats.TotalBooks,
		TotalMembers:   stats.TotalMembers,
		TotalIssued:    stats.TotalIssued,
		TotalReturned:  stats.TotalReturned,
		PendingReturns: stats.PendingReturns,
		TotalFine:      float64(stats.TotalFineCents) / 100,
	}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}
