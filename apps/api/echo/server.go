package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/chat"
	"github.com/trezcool/trackit/core/group"
	"github.com/trezcool/trackit/core/notice"
	"github.com/trezcool/trackit/core/outbox"
	"github.com/trezcool/trackit/core/submission"
	"github.com/trezcool/trackit/core/task"
)

type (
	// InvitationSender mails a group join code right away.
	InvitationSender interface {
		SendInvitation(ctx context.Context, inv outbox.Invitation) error
	}

	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		AccountSvc    *account.Service
		GroupSvc      *group.Service
		TaskSvc       *task.Service
		SubmissionSvc *submission.Service
		NoticeSvc     *notice.Service
		ChatSvc       *chat.Service
		OutboxSvc     *outbox.Service
		Invitations   InvitationSender
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	auth := s.authMiddleware(false)

	registerAccountAPI(v1, auth, s.authMiddleware(true), s.deps.AccountSvc, s.deps.Validate, conf, s.deps.Logger)
	registerGroupAPI(v1, auth, s.deps.GroupSvc, s.deps.TaskSvc, s.deps.SubmissionSvc, s.deps.ChatSvc, s.deps.Validate)
	registerTaskAPI(v1, auth, s.deps.TaskSvc, s.deps.SubmissionSvc)
	registerSubmissionAPI(v1, auth, s.deps.SubmissionSvc)
	registerNoticeAPI(v1, auth, s.deps.NoticeSvc)
	registerAdminAPI(v1, auth, s.deps.AccountSvc, s.deps.OutboxSvc)
	registerFunctionsAPI(v1, s.deps.Invitations, conf, s.deps.Logger)
}

// authMiddleware verifies the JWT then loads the session account.
func (s *server) authMiddleware(optional bool) echo.MiddlewareFunc {
	jwt := middleware.JWTWithConfig(jwtConfig(s.deps.Conf, optional))
	sess := sessionMiddleware(s.deps.AccountSvc)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwt(sess(next))
	}
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
