// Package api expõe o cadastro de produtos e os ciclos de verificação via HTTP.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"monitor-precos/internal/metrics"
	"monitor-precos/pkg/logger"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

// Init registra as rotas da API
func (r *Router) Init(h *ProductHandler) {
	r.router.Use(middleware.Recoverer)
	r.router.Use(metricsMiddleware)

	r.router.Get("/health", h.health)
	r.router.Handle("/metrics", metrics.Handler())

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerProductRoutes(v1, h)
		v1.Post("/cycles", h.runCycle)
	})
}

func registerProductRoutes(router chi.Router, h *ProductHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Get("/", h.listProducts)
		pr.Post("/", h.createProduct)

		pr.Route("/{id}", func(item chi.Router) {
			item.Get("/", h.getProduct)
			item.Delete("/", h.deleteProduct)
			item.Post("/check", h.checkProduct)
			item.Post("/rearm", h.rearmProduct)
			item.Put("/target", h.updateTarget)
		})
	})
}
