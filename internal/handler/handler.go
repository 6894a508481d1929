// Package handler содержит HTTP-обработчики API библиотечного сервиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/library-system/internal/middleware"
	"github.com/mmeshcher/library-system/internal/model"
	"github.com/mmeshcher/library-system/internal/repository"
	"github.com/mmeshcher/library-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, fullName, email, password string) (int64, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	BorrowBook(ctx context.Context, userID, bookID int64) (*model.Loan, error)
	ReturnLoan(ctx context.Context, loanID, actingUserID int64, isAdmin bool) (float64, error)
	CreateBook(ctx context.Context, b model.Book) (int64, error)
	UpdateBook(ctx context.Context, b model.Book) error
	DeleteBook(ctx context.Context, bookID int64) error
	GetBook(ctx context.Context, bookID int64) (*model.Book, error)
	ListBooks(ctx context.Context, search, category string) ([]model.Book, error)
	ListCategories(ctx context.Context) ([]string, error)
	GetLoansByUser(ctx context.Context, userID int64) ([]model.LoanDetails, error)
	GetAllLoans(ctx context.Context) ([]model.LoanDetails, error)
	GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error)
	GetStats(ctx context.Context) (*model.Stats, error)
}

// Handler реализует HTTP-обработчики API библиотечного сервиса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового читателя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.FullName == "" || req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID, model.RoleUser)
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID, u.Role)
	w.WriteHeader(http.StatusOK)
}

type bookResponse struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	Description     string `json:"description,omitempty"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

// ListBooks возвращает каталог книг с учётом поиска и фильтра по категории.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("q")
	category := r.URL.Query().Get("cat")

	books, err := h.service.ListBooks(r.Context(), search, category)
	if err != nil {
		h.logger.Error("list books error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]bookResponse, 0, len(books))
	for _, b := range books {
		resp = append(resp, bookResponse{
			ID:              b.ID,
			Title:           b.Title,
			Author:          b.Author,
			Category:        b.Category,
			Description:     b.Description,
			TotalCopies:     b.TotalCopies,
			AvailableCopies: b.AvailableCopies,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// GetBook возвращает карточку книги.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.GetBook(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get book error", zap.Error(err), zap.Int64("bookID", bookID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(bookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		Category:        b.Category,
		Description:     b.Description,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
	}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// ListCategories возвращает список категорий каталога.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if categories == nil {
		categories = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(categories); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type borrowResponse struct {
	ID      int64  `json:"id"`
	DueDate string `json:"due_date"`
}

// BorrowBook выдаёт текущему пользователю экземпляр книги.
func (h *Handler) BorrowBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	bookID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	loan, err := h.service.BorrowBook(r.Context(), userID, bookID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBookNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrNoCopiesAvailable):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrTransient):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("borrow book error", zap.Error(err),
				zap.Int64("userID", userID), zap.Int64("bookID", bookID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(borrowResponse{
		ID:      loan.ID,
		DueDate: loan.DueDate.Format("2006-01-02"),
	}); err != nil {
		h.logger.Error("encode borrow response error", zap.Error(err))
	}
}

type returnResponse struct {
	Fine float64 `json:"fine"`
}

// ReturnLoan принимает возврат займа текущего пользователя.
func (h *Handler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	loanID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.returnLoan(w, r, loanID, userID, middleware.IsAdminFromContext(r.Context()))
}

// returnLoan выполняет возврат займа от имени actingUserID и пишет ответ с суммой штрафа.
func (h *Handler) returnLoan(w http.ResponseWriter, r *http.Request, loanID, actingUserID int64, isAdmin bool) {
	fine, err := h.service.ReturnLoan(r.Context(), loanID, actingUserID, isAdmin)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLoanNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrLoanOwnedByAnother):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, model.ErrAlreadyReturned):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrTransient):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("return loan error", zap.Error(err),
				zap.Int64("loanID", loanID), zap.Int64("userID", actingUserID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(returnResponse{Fine: fine}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type loanResponse struct {
	ID         int64   `json:"id"`
	BookTitle  string  `json:"book_title"`
	BookAuthor string  `json:"book_author"`
	UserName   string  `json:"user_name,omitempty"`
	UserEmail  string  `json:"user_email,omitempty"`
	IssuedAt   string  `json:"issued_at"`
	DueDate    string  `json:"due_date"`
	ReturnedAt *string `json:"returned_at,omitempty"`
	Status     string  `json:"status"`
	Fine       float64 `json:"fine"`
}

func toLoanResponse(l model.LoanDetails) loanResponse {
	resp := loanResponse{
		ID:         l.ID,
		BookTitle:  l.BookTitle,
		BookAuthor: l.BookAuthor,
		UserName:   l.UserName,
		UserEmail:  l.UserEmail,
		IssuedAt:   l.IssuedAt.Format(time.RFC3339),
		DueDate:    l.DueDate.Format("2006-01-02"),
		Status:     string(l.Status),
		Fine:       float64(l.FineAmountCents) / 100,
	}
	if l.ReturnedAt != nil {
		v := l.ReturnedAt.Format(time.RFC3339)
		resp.ReturnedAt = &v
	}
	return resp
}

// GetLoans возвращает список займов текущего пользователя.
func (h *Handler) GetLoans(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	loans, err := h.service.GetLoansByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get loans error", zap.Error(err), zap.Int64("userID", userID))
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

type profileResponse struct {
	TotalIssues  int64   `json:"total_issues"`
	ActiveIssues int64   `json:"active_issues"`
	TotalFine    float64 `json:"total_fine"`
}

// GetProfile возвращает показатели профиля текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	stats, err := h.service.GetUserStats(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(profileResponse{
		TotalIssues:  stats.TotalIssues,
		ActiveIssues: stats.ActiveIssues,
		TotalFine:    float64(stats.TotalFineCents) / 100,
	}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}
