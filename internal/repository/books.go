package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/library-system/internal/model"
)

// reserveCopy резервирует один экземпляр книги под новый займ.
// Строка книги блокируется до конца транзакции, поэтому конкурирующие выдачи
// последнего экземпляра сериализуются: успешной будет ровно одна.
func reserveCopy(ctx context.Context, tx pgx.Tx, bookID int64) error {
	var available, total int
	err := tx.QueryRow(ctx,
		`SELECT available_copies, total_copies FROM books WHERE id = $1 FOR UPDATE`,
		bookID,
	).Scan(&available, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBookNotFound
		}
		return fmt.Errorf("lock book row: %w", err)
	}

	if available <= 0 {
		return ErrNoCopiesAvailable
	}

	if _, err := tx.Exec(ctx,
		`UPDATE books SET available_copies = available_copies - 1 WHERE id = $1`,
		bookID,
	); err != nil {
		return fmt.Errorf("decrement available copies: %w", err)
	}

	return nil
}

// releaseCopy возвращает экземпляр книги в фонд после возврата займа.
// Превышение total_copies означает рассинхронизацию счётчиков со списком займов;
// транзакция откатывается с ErrInventoryCorrupted.
func releaseCopy(ctx context.Context, tx pgx.Tx, bookID int64) error {
	var available, total int
	err := tx.QueryRow(ctx,
		`SELECT available_copies, total_copies FROM books WHERE id = $1 FOR UPDATE`,
		bookID,
	).Scan(&available, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBookNotFound
		}
		return fmt.Errorf("lock book row: %w", err)
	}

	if available >= total {
		return fmt.Errorf("%w: book %d already has %d of %d copies available",
			ErrInventoryCorrupted, bookID, available, total)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE books SET available_copies = available_copies + 1 WHERE id = $1`,
		bookID,
	); err != nil {
		return fmt.Errorf("increment available copies: %w", err)
	}

	return nil
}

// CreateBook добавляет книгу в каталог; все экземпляры сразу доступны.
func (r *PostgresRepository) CreateBook(ctx context.Context, b model.Book) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO books (title, author, category, description, total_copies, available_copies)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 RETURNING id`,
		b.Title, b.Author, b.Category, b.Description, b.TotalCopies,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert book: %w", err)
	}
	return id, nil
}

// UpdateBook обновляет карточку книги. Если новое значение total_copies меньше
// числа доступных экземпляров, available_copies прижимается к новому максимуму.
func (r *PostgresRepository) UpdateBook(ctx context.Context, b model.Book) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE books
		 SET title = $2, author = $3, category = $4, description = $5,
		     total_copies = $6, available_copies = LEAST(available_copies, $6)
		 WHERE id = $1`,
		b.ID, b.Title, b.Author, b.Category, b.Description, b.TotalCopies,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrBookNotFound
	}

	return nil
}

// DeleteBook удаляет книгу из каталога. Книга, на которую ссылаются займы,
// не удаляется: история займов хранится вечно, а невозвращённый экземпляр
// без строки книги сломал бы инвариант счётчиков.
func (r *PostgresRepository) DeleteBook(ctx context.Context, bookID int64) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// Блокируем строку книги: конкурирующая выдача держит этот же замок
		// в reserveCopy, поэтому займ не может появиться между проверкой и DELETE.
		var dummy int
		err = tx.QueryRow(ctx, `SELECT 1 FROM books WHERE id = $1 FOR UPDATE`, bookID).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrBookNotFound
			}
			return fmt.Errorf("lock book row: %w", err)
		}

		var hasLoans bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM loans WHERE book_id = $1)`,
			bookID,
		).Scan(&hasLoans)
		if err != nil {
			return fmt.Errorf("check loans: %w", err)
		}
		if hasLoans {
			return ErrBookHasLoans
		}

		if _, err := tx.Exec(ctx, `DELETE FROM books WHERE id = $1`, bookID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return fmt.Errorf("%w: book %d", ErrBookHasLoans, bookID)
			}
			return fmt.Errorf("delete book: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetBook возвращает книгу по идентификатору.
func (r *PostgresRepository) GetBook(ctx context.Context, bookID int64) (*model.Book, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, title, author, category, description, total_copies, available_copies, created_at
		 FROM books WHERE id = $1`,
		bookID,
	)

	var b model.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.Description,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	return &b, nil
}

// ListBooks возвращает каталог, отфильтрованный по поисковой строке и категории.
// Поиск ведётся по названию, автору и категории без учёта регистра.
func (r *PostgresRepository) ListBooks(ctx context.Context, search, category string) ([]model.Book, error) {
	sql := `SELECT id, title, author, category, description, total_copies, available_copies, created_at
	        FROM books`

	var conds []string
	var args []any

	if search != "" {
		args = append(args, "%"+search+"%")
		p := "$" + strconv.Itoa(len(args))
		conds = append(conds, "(title ILIKE "+p+" OR author ILIKE "+p+" OR category ILIKE "+p+")")
	}

	if category != "" {
		args = append(args, category)
		conds = append(conds, "category = $"+strconv.Itoa(len(args)))
	}

	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select books: %w", err)
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.Description,
			&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return books, nil
}

// ListCategories возвращает список категорий каталога для формы поиска.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM books ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}
