// Package model содержит доменные сущности библиотечного сервиса.
package model

import (
	"errors"
	"time"
)

// ErrAlreadyReturned возвращается при попытке повторно вернуть уже возвращённый займ.
var ErrAlreadyReturned = errors.New("loan already returned")

// User представляет зарегистрированного читателя или администратора.
type User struct {
	ID           int64
	FullName     string
	Email        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Book описывает книгу каталога и счётчики её экземпляров.
// Инвариант: 0 <= AvailableCopies <= TotalCopies.
type Book struct {
	ID              int64
	Title           string
	Author          string
	Category        string
	Description     string
	TotalCopies     int
	AvailableCopies int
	CreatedAt       time.Time
}

// LoanStatus описывает состояние займа.
type LoanStatus string

const (
	LoanStatusIssued   LoanStatus = "issued"
	LoanStatusReturned LoanStatus = "returned"
)

// Loan описывает выдачу одного экземпляра книги одному читателю.
type Loan struct {
	ID              int64
	UserID          int64
	BookID          int64
	IssuedAt        time.Time
	DueDate         time.Time
	ReturnedAt      *time.Time
	FineAmountCents int64
	Status          LoanStatus
}

// MarkReturned переводит займ из состояния issued в терминальное состояние returned.
// Единственный допустимый переход; для займа в любом другом состоянии
// возвращается ErrAlreadyReturned, и поля не изменяются.
func (l *Loan) MarkReturned(now time.Time, fineCents int64) error {
	if l.Status != LoanStatusIssued {
		return ErrAlreadyReturned
	}

	l.Status = LoanStatusReturned
	l.ReturnedAt = &now
	l.FineAmountCents = fineCents

	return nil
}

// LoanDetails объединяет займ с данными книги и читателя для списков.
type LoanDetails struct {
	Loan
	BookTitle  string
	BookAuthor string
	UserName   string
	UserEmail  string
}

// UserStats содержит показатели профиля читателя.
type UserStats struct {
	TotalIssues    int64
	ActiveIssues   int64
	TotalFineCents int64
}

// Stats содержит показатели административной панели.
type Stats struct {
	TotalBooks     int64
	TotalMembers   int64
	TotalIssued    int64
	TotalReturned  int64
	PendingReturns int64
	TotalFineCents int64
}
