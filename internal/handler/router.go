package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/library-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware библиотечного сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Get("/books", h.ListBooks)
		r.Get("/books/categories", h.ListCategories)
		r.Get("/books/{id}", h.GetBook)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/books/{id}/borrow", h.BorrowBook)

			r.Get("/user/loans", h.GetLoans)
			r.Post("/user/loans/{id}/return", h.ReturnLoan)
			r.Get("/user/profile", h.GetProfile)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.authMiddleware.RequireAdmin)

			r.Post("/books", h.CreateBook)
			r.Put("/books/{id}", h.UpdateBook)
			r.Delete("/books/{id}", h.DeleteBook)

			r.Get("/loans", h.GetAllLoans)
			r.Post("/loans/{id}/return", h.AdminReturnLoan)

			r.Get("/stats", h.GetStats)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
