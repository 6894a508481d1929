package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmeshcher/library-system/internal/model"
	"github.com/mmeshcher/library-system/internal/repository"
)

type stubRepo struct {
	createUserID  int64
	createUserErr error

	getUser    *model.User
	getUserErr error

	createLoanID  int64
	createLoanErr error
	gotLoanUserID int64
	gotLoanBookID int64
	gotIssuedAt   time.Time
	gotDueDate    time.Time

	returnFineCents  int64
	returnErr        error
	gotReturnLoanID  int64
	gotReturnUserID  int64
	gotReturnIsAdmin bool
	gotReturnNow     time.Time
	gotReturnPerDay  int64

	stats *model.Stats
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, fullName, email string, passwordHash []byte) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) CreateBook(ctx context.Context, b model.Book) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpdateBook(ctx context.Context, b model.Book) error { return nil }

func (s *stubRepo) DeleteBook(ctx context.Context, bookID int64) error { return nil }

func (s *stubRepo) GetBook(ctx context.Context, bookID int64) (*model.Book, error) {
	return nil, nil
}

func (s *stubRepo) ListBooks(ctx context.Context, search, category string) ([]model.Book, error) {
	return nil, nil
}

func (s *stubRepo) ListCategories(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (s *stubRepo) CreateLoan(ctx context.Context, userID, bookID int64, issuedAt, dueDate time.Time) (int64, error) {
	s.gotLoanUserID = userID
	s.gotLoanBookID = bookID
	s.gotIssuedAt = issuedAt
	s.gotDueDate = dueDate
	return s.createLoanID, s.createLoanErr
}

func (s *stubRepo) ReturnLoan(ctx context.Context, loanID, actingUserID int64, isAdmin bool, now time.Time, finePerDayCents int64) (int64, error) {
	s.gotReturnLoanID = loanID
	s.gotReturnUserID = actingUserID
	s.gotReturnIsAdmin = isAdmin
	s.gotReturnNow = now
	s.gotReturnPerDay = finePerDayCents
	return s.returnFineCents, s.returnErr
}

func (s *stubRepo) GetLoansByUser(ctx context.Context, userID int64) ([]model.LoanDetails, error) {
	return nil, nil
}

func (s *stubRepo) GetAllLoans(ctx context.Context) ([]model.LoanDetails, error) {
	return nil, nil
}

func (s *stubRepo) GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	return nil, nil
}

func (s *stubRepo) GetStats(ctx context.Context) (*model.Stats, error) {
	return s.stats, nil
}

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user@example.com", "pass")
	b := hashPassword("user@example.com", "pass")
	c := hashPassword("user@example.com", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{
		createUserErr: repository.ErrUserExists,
	}
	svc := NewService(repo, 500, 7)

	_, err := svc.RegisterUser(context.Background(), "Reader", "reader@example.com", "pass")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	hashed := hashPassword("reader@example.com", "correct")
	repo := &stubRepo{
		getUser: &model.User{
			ID:           1,
			Email:        "reader@example.com",
			PasswordHash: hashed,
			Role:         model.RoleUser,
		},
	}

	svc := NewService(repo, 500, 7)

	_, err := svc.AuthenticateUser(context.Background(), "reader@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUser_ReturnsUserWithRole(t *testing.T) {
	hashed := hashPassword("admin@example.com", "correct")
	repo := &stubRepo{
		getUser: &model.User{
			ID:           2,
			Email:        "admin@example.com",
			PasswordHash: hashed,
			Role:         model.RoleAdmin,
		},
	}

	svc := NewService(repo, 500, 7)

	u, err := svc.AuthenticateUser(context.Background(), "admin@example.com", "correct")
	if err != nil {
		t.Fatalf("AuthenticateUser error: %v", err)
	}
	if u.ID != 2 || u.Role != model.RoleAdmin {
		t.Fatalf("got user %+v, want id 2 with admin role", u)
	}
}

func TestBorrowBook_DueDateIsLoanPeriodAhead(t *testing.T) {
	repo := &stubRepo{createLoanID: 10}
	svc := NewService(repo, 500, 7)

	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	loan, err := svc.BorrowBook(context.Background(), 3, 5)
	if err != nil {
		t.Fatalf("BorrowBook error: %v", err)
	}

	wantDue := time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)
	if loan.ID != 10 {
		t.Fatalf("loan id = %d, want 10", loan.ID)
	}
	if !loan.DueDate.Equal(wantDue) {
		t.Fatalf("due date = %v, want %v", loan.DueDate, wantDue)
	}
	if loan.Status != model.LoanStatusIssued {
		t.Fatalf("status = %q, want issued", loan.Status)
	}
	if !repo.gotIssuedAt.Equal(issued) || !repo.gotDueDate.Equal(wantDue) {
		t.Fatalf("repo got issuedAt=%v dueDate=%v", repo.gotIssuedAt, repo.gotDueDate)
	}
}

func TestBorrowBook_PropagatesOutOfCopies(t *testing.T) {
	repo := &stubRepo{createLoanErr: repository.ErrNoCopiesAvailable}
	svc := NewService(repo, 500, 7)

	_, err := svc.BorrowBook(context.Background(), 3, 5)
	if !errors.Is(err, repository.ErrNoCopiesAvailable) {
		t.Fatalf("expected ErrNoCopiesAvailable, got %v", err)
	}
}

func TestReturnLoan_ConvertsFineToRubles(t *testing.T) {
	repo := &stubRepo{returnFineCents: 1500}
	svc := NewService(repo, 500, 7)

	now := time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	fine, err := svc.ReturnLoan(context.Background(), 10, 3, false)
	if err != nil {
		t.Fatalf("ReturnLoan error: %v", err)
	}
	if fine != 15 {
		t.Fatalf("fine = %v, want 15", fine)
	}
	if repo.gotReturnLoanID != 10 || repo.gotReturnUserID != 3 || repo.gotReturnIsAdmin {
		t.Fatalf("repo got loanID=%d userID=%d isAdmin=%v",
			repo.gotReturnLoanID, repo.gotReturnUserID, repo.gotReturnIsAdmin)
	}
	if !repo.gotReturnNow.Equal(now) || repo.gotReturnPerDay != 500 {
		t.Fatalf("repo got now=%v perDay=%d", repo.gotReturnNow, repo.gotReturnPerDay)
	}
}

func TestReturnLoan_AdminFlagPassedThrough(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, 500, 7)

	if _, err := svc.ReturnLoan(context.Background(), 10, 99, true); err != nil {
		t.Fatalf("ReturnLoan error: %v", err)
	}
	if !repo.gotReturnIsAdmin {
		t.Fatalf("isAdmin flag was not passed to repository")
	}
}

func TestReturnLoan_PropagatesAlreadyReturned(t *testing.T) {
	repo := &stubRepo{returnErr: model.ErrAlreadyReturned}
	svc := NewService(repo, 500, 7)

	_, err := svc.ReturnLoan(context.Background(), 10, 3, false)
	if !errors.Is(err, model.ErrAlreadyReturned) {
		t.Fatalf("expected ErrAlreadyReturned, got %v", err)
	}
}

func TestReturnLoan_PropagatesOwnership(t *testing.T) {
	repo := &stubRepo{returnErr: repository.ErrLoanOwnedByAnother}
	svc := NewService(repo, 500, 7)

	_, err := svc.ReturnLoan(context.Background(), 10, 3, false)
	if !errors.Is(err, repository.ErrLoanOwnedByAnother) {
		t.Fatalf("expected ErrLoanOwnedByAnother, got %v", err)
	}
}
