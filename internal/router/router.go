package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/exhibitly/backend/api/handler"
)

type Handlers struct {
	Institutions *apiHandler.ResourceHandler
	Exhibitions  *apiHandler.ResourceHandler
	Exhibits     *apiHandler.ResourceHandler
	Preview      *apiHandler.PreviewHandler
	Health       *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	mount(r, "/api/v1/institutions", handlers.Institutions, authMiddleware)
	mount(r, "/api/v1/exhibitions", handlers.Exhibitions, authMiddleware)
	mount(r, "/api/v1/exhibits", handlers.Exhibits, authMiddleware)

	r.POST("/api/v1/preview/audio", authMiddleware(handlers.Preview.Audio))

	return r
}

func mount(r *router.Router, prefix string, h *apiHandler.ResourceHandler, mw func(fasthttp.RequestHandler) fasthttp.RequestHandler) {
	r.POST(prefix, mw(h.Create))
	r.GET(prefix, mw(h.List))
	r.GET(prefix+"/{id}", mw(h.Get))
	r.PUT(prefix+"/{id}", mw(h.Update))
	r.DELETE(prefix+"/{id}", mw(h.Delete))
}
