package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"qrpass/internal/config"
	"qrpass/internal/http-server/handlers/attendance"
	"qrpass/internal/http-server/handlers/errors"
	"qrpass/internal/http-server/handlers/scan"
	"qrpass/internal/http-server/handlers/token"
	"qrpass/internal/http-server/middleware/authenticate"
	"qrpass/internal/http-server/middleware/timeout"
	"qrpass/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	token.Core
	scan.Core
	attendance.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, handler))
		rootApi.Route("/tokens", func(tk chi.Router) {
			tk.Post("/", token.Issue(log, handler))
			tk.Delete("/{id}", token.Deactivate(log, handler))
			tk.Get("/{id}/qr", token.Image(log, handler))
		})
		rootApi.Post("/scan", scan.Redeem(log, handler))
		rootApi.Get("/attendance", attendance.List(log, handler))
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
