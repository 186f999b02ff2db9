// Package stubserver is a self-contained in-memory rendition of the shop
// backend. It exists for local development and integration tests: the real
// backend stays remote, the stub answers the same routes with seeded data.
package stubserver

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sol1corejz/voidshop/internal/logger"
	"go.uber.org/zap"
)

type Server struct {
	store *Store
}

func New() *Server {
	return &Server{store: NewStore()}
}

func (s *Server) Store() *Store {
	return s.store
}

// App builds the fiber application with all routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	app.Get("/api/captcha", s.getCaptchaHandler)
	app.Post("/api/verify_captcha", s.verifyCaptchaHandler)
	app.Post("/api/user", s.upsertUserHandler)
	app.Get("/api/cities", s.getCitiesHandler)

	app.Get("/api/stores/categories/", s.getCategoriesHandler)
	app.Get("/api/stores/search/", s.searchProductsHandler)

	app.Get("/api/balance/methods", s.getMethodsHandler)
	app.Post("/api/balance/create", s.createRequestHandler)
	app.Post("/api/balance/upload-receipt/:orderID", s.uploadReceiptHandler)
	app.Post("/api/balance/mark-paid/:orderID", s.markPaidHandler)
	app.Get("/api/balance/requests/:tgID", s.getRequestsHandler)
	app.Post("/api/balance/process/:orderID", s.processRequestHandler)

	return app
}

// Run blocks serving the stub on the given address.
func (s *Server) Run(address string) error {
	logger.Log.Info("Running stub backend", zap.String("address", address))
	return s.App().Listen(address)
}
