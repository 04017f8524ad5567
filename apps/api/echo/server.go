package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
	"github.com/trezcool/seta/core/student"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		FormSvc    fundingwindow.ServiceInterface
		StudentSvc student.ServiceInterface
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		forms    *formRegistry
		errors   chan error
		shutdown chan os.Signal
		done     chan struct{}
		stopOnce sync.Once
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		forms:    newFormRegistry(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
		done:     make(chan struct{}),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1", echoJWT(conf))

	registerFundingWindowAPI(v1, s.forms, s.deps.FormSvc, s.deps.Logger)
	registerSubmissionAPI(v1, s.deps.FormSvc)
	registerStudentAPI(v1, s.deps.StudentSvc)
}

// Start blocks until the server stops. Errors other than a graceful close are sent to Errors.
func (s *Server) Start() {
	if ttl := s.deps.Conf.Server.FormTTL; ttl > 0 {
		go s.sweepForms(ttl)
	}
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the owner of the Server to shut it down.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signalled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.stop()
	return s.app.Close()
}

func (s *Server) stop() {
	s.stopOnce.Do(func() {
		signal.Stop(s.shutdown)
		close(s.done)
	})
}

// sweepForms drops the forms left open longer than ttl.
func (s *Server) sweepForms(ttl time.Duration) {
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			if n := s.forms.expire(now.Add(-ttl)); n > 0 {
				s.deps.Logger.Info(fmt.Sprintf("dropped %d expired form(s)", n))
			}
		}
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
