// Package service реализует бизнес-логику библиотечного сервиса.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/mmeshcher/library-system/internal/model"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, fullName, email string, passwordHash []byte) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateBook(ctx context.Context, b model.Book) (int64, error)
	UpdateBook(ctx context.Context, b model.Book) error
	DeleteBook(ctx context.Context, bookID int64) error
	GetBook(ctx context.Context, bookID int64) (*model.Book, error)
	ListBooks(ctx context.Context, search, category string) ([]model.Book, error)
	ListCategories(ctx context.Context) ([]string, error)
	CreateLoan(ctx context.Context, userID, bookID int64, issuedAt, dueDate time.Time) (int64, error)
	ReturnLoan(ctx context.Context, loanID, actingUserID int64, isAdmin bool, now time.Time, finePerDayCents int64) (int64, error)
	GetLoansByUser(ctx context.Context, userID int64) ([]model.LoanDetails, error)
	GetAllLoans(ctx context.Context) ([]model.LoanDetails, error)
	GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error)
	GetStats(ctx context.Context) (*model.Stats, error)
}

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service содержит бизнес-логику библиотечного сервиса.
type Service struct {
	repo            Repository
	finePerDayCents int64
	loanPeriodDays  int
	now             func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием, дневной ставкой
// штрафа в копейках и сроком займа в днях.
func NewService(repo Repository, finePerDayCents int64, loanPeriodDays int) *Service {
	return &Service{
		repo:            repo,
		finePerDayCents: finePerDayCents,
		loanPeriodDays:  loanPeriodDays,
		now:             time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового читателя.
func (s *Service) RegisterUser(ctx context.Context, fullName, email, password string) (int64, error) {
	hashed := hashPassword(email, password)
	return s.repo.CreateUser(ctx, fullName, email, hashed)
}

// AuthenticateUser проверяет email и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	hashed := hashPassword(email, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func hashPassword(email, password string) []byte {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return sum[:]
}

// BorrowBook выдаёт читателю экземпляр книги и возвращает созданный займ.
// Срок возврата отсчитывается от момента выдачи.
func (s *Service) BorrowBook(ctx context.Context, userID, bookID int64) (*model.Loan, error) {
	issuedAt := s.now()
	dueDate := issuedAt.AddDate(0, 0, s.loanPeriodDays)

	id, err := s.repo.CreateLoan(ctx, userID, bookID, issuedAt, dueDate)
	if err != nil {
		return nil, err
	}

	return &model.Loan{
		ID:       id,
		UserID:   userID,
		BookID:   bookID,
		IssuedAt: issuedAt,
		DueDate:  dueDate,
		Status:   model.LoanStatusIssued,
	}, nil
}

// ReturnLoan принимает возврат займа и возвращает сумму штрафа в рублях.
// Не-администратор может вернуть только собственный займ.
func (s *Service) ReturnLoan(ctx context.Context, loanID, actingUserID int64, isAdmin bool) (float64, error) {
	fineCents, err := s.repo.ReturnLoan(ctx, loanID, actingUserID, isAdmin, s.now(), s.finePerDayCents)
	if err != nil {
		return 0, err
	}

	return float64(fineCents) / 100, nil
}

// CreateBook добавляет книгу в каталог.
func (s *Service) CreateBook(ctx context.Context, b model.Book) (int64, error) {
	return s.repo.CreateBook(ctx, b)
}

// UpdateBook обновляет карточку книги.
func (s *Service) UpdateBook(ctx context.Context, b model.Book) error {
	return s.repo.UpdateBook(ctx, b)
}

// DeleteBook удаляет книгу из каталога.
func (s *Service) DeleteBook(ctx context.Context, bookID int64) error {
	return s.repo.DeleteBook(ctx, bookID)
}

// GetBook возвращает книгу по идентификатору.
func (s *Service) GetBook(ctx context.Context, bookID int64) (*model.Book, error) {
	return s.repo.GetBook(ctx, bookID)
}

// ListBooks возвращает каталог с учётом поисковой строки и категории.
func (s *Service) ListBooks(ctx context.Context, search, category string) ([]model.Book, error) {
	return s.repo.ListBooks(ctx, search, category)
}

// ListCategories возвращает список категорий каталога.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	return s.repo.ListCategories(ctx)
}

// GetLoansByUser возвращает займы читателя.
func (s *Service) GetLoansByUser(ctx context.Context, userID int64) ([]model.LoanDetails, error) {
	return s.repo.GetLoansByUser(ctx, userID)
}

// GetAllLoans возвращает все займы для админ-панели.
func (s *Service) GetAllLoans(ctx context.Context) ([]model.LoanDetails, error) {
	return s.repo.GetAllLoans(ctx)
}

// GetUserStats возвращает показатели профиля читателя.
func (s *Service) GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	return s.repo.GetUserStats(ctx, userID)
}

// GetStats возвращает показатели административной панели.
func (s *Service) GetStats(ctx context.Context) (*model.Stats, error) {
	return s.repo.GetStats(ctx)
}
