package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/newsupernova0617/convert-for-you/internal/metrics"
	"github.com/newsupernova0617/convert-for-you/internal/transport/handler"
)

func NewRouter(h *handler.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", h.Upload)
		r.Post("/convert", h.Convert)
		r.Post("/merge", h.Merge)
		r.Post("/split", h.Split)
		r.Post("/compress", h.Compress)
		r.Post("/image", h.Image)
		r.Get("/download/{fileID}", h.Download)
		r.Get("/status", h.Status)
		r.Delete("/admin/files/{fileID}", h.AdminDelete)
	})

	r.Handle("/metrics", metrics.Handler())

	return r
}
