package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/library-system/internal/fines"
	"github.com/mmeshcher/library-system/internal/model"
)

// CreateLoan выдаёт экземпляр книги читателю: резервирование экземпляра и
// создание записи займа выполняются в одной транзакции.
func (r *PostgresRepository) CreateLoan(ctx context.Context, userID, bookID int64, issuedAt, dueDate time.Time) (int64, error) {
	var loanID int64

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := reserveCopy(ctx, tx, bookID); err != nil {
			return err
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO loans (user_id, book_id, issued_at, due_date, status)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			userID, bookID, issuedAt, dueDate, string(model.LoanStatusIssued),
		).Scan(&loanID)
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return loanID, nil
}

// ReturnLoan завершает займ: под блокировкой строки займа проверяется владелец
// и состояние, считается штраф, экземпляр возвращается в фонд. Всё в одной
// транзакции, поэтому счётчики книги и состояние займа не расходятся.
// Возвращает сумму штрафа в копейках.
func (r *PostgresRepository) ReturnLoan(ctx context.Context, loanID, actingUserID int64, isAdmin bool, now time.Time, finePerDayCents int64) (int64, error) {
	var fineCents int64

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx,
			`SELECT id, user_id, book_id, issued_at, due_date, returned_at, fine_amount, status
			 FROM loans WHERE id = $1 FOR UPDATE`,
			loanID,
		)

		var l model.Loan
		err = row.Scan(&l.ID, &l.UserID, &l.BookID, &l.IssuedAt, &l.DueDate,
			&l.ReturnedAt, &l.FineAmountCents, &l.Status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLoanNotFound
			}
			return fmt.Errorf("lock loan row: %w", err)
		}

		if !isAdmin && l.UserID != actingUserID {
			return ErrLoanOwnedByAnother
		}

		fine := fines.Calculate(l.DueDate, now, finePerDayCents)
		if err := l.MarkReturned(now, fine); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE loans SET status = $2, returned_at = $3, fine_amount = $4 WHERE id = $1`,
			l.ID, string(l.Status), l.ReturnedAt, l.FineAmountCents,
		)
		if err != nil {
			return fmt.Errorf("update loan: %w", err)
		}

		if err := releaseCopy(ctx, tx, l.BookID); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		fineCents = l.FineAmountCents
		return nil
	})
	if err != nil {
		return 0, err
	}

	return fineCents, nil
}

// GetLoansByUser возвращает займы читателя вместе с данными книг.
func (r *PostgresRepository) GetLoansByUser(ctx context.Context, userID int64) ([]model.LoanDetails, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.user_id, l.book_id, l.issued_at, l.due_date, l.returned_at,
		        l.fine_amount, l.status, b.title, b.author
		 FROM loans l
		 JOIN books b ON l.book_id = b.id
		 WHERE l.user_id = $1
		 ORDER BY l.issued_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select loans: %w", err)
	}
	defer rows.Close()

	var loans []model.LoanDetails
	for rows.Next() {
		var l model.LoanDetails
		if err := rows.Scan(&l.ID, &l.UserID, &l.BookID, &l.IssuedAt, &l.DueDate,
			&l.ReturnedAt, &l.FineAmountCents, &l.Status, &l.BookTitle, &l.BookAuthor); err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return loans, nil
}

// GetAllLoans возвращает все займы с данными книг и читателей для админ-панели.
func (r *PostgresRepository) GetAllLoans(ctx context.Context) ([]model.LoanDetails, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.user_id, l.book_id, l.issued_at, l.due_date, l.returned_at,
		        l.fine_amount, l.status, b.title, b.author, u.full_name, u.email
		 FROM loans l
		 JOIN books b ON l.book_id = b.id
		 JOIN users u ON l.user_id = u.id
		 ORDER BY l.issued_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select loans: %w", err)
	}
	defer rows.Close()

	var loans []model.LoanDetails
	for rows.Next() {
		var l model.LoanDetails
		if err := rows.Scan(&l.ID, &l.UserID, &l.BookID, &l.IssuedAt, &l.DueDate,
			&l.ReturnedAt, &l.FineAmountCents, &l.Status,
			&l.BookTitle, &l.BookAuthor, &l.UserName, &l.UserEmail); err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return loans, nil
}

// GetUserStats возвращает показатели профиля читателя.
func (r *PostgresRepository) GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	var s model.UserStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = $2 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(fine_amount), 0)
		 FROM loans
		 WHERE user_id = $1`,
		userID, string(model.LoanStatusIssued),
	).Scan(&s.TotalIssues, &s.ActiveIssues, &s.TotalFineCents)
	if err != nil {
		return nil, fmt.Errorf("select user stats: %w", err)
	}

	return &s, nil
}

// GetStats возвращает показатели административной панели.
func (r *PostgresRepository) GetStats(ctx context.Context) (*model.Stats, error) {
	var s model.Stats

	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&s.TotalBooks)
	if err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1`,
		string(model.RoleUser),
	).Scan(&s.TotalMembers)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = $1 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = $2 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(fine_amount), 0)
		 FROM loans`,
		string(model.LoanStatusReturned), string(model.LoanStatusIssued),
	).Scan(&s.TotalIssued, &s.TotalReturned, &s.PendingReturns, &s.TotalFineCents)
	if err != nil {
		return nil, fmt.Errorf("select loan stats: %w", err)
	}

	return &s, nil
}
