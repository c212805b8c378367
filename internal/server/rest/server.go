// Package rest exposes the auth workflow over HTTP under /api/v1/auth.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gorilla/mux"
)

// AuthService is the workflow the handlers drive.
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*models.AuthUser, string, error)
	Signin(ctx context.Context, identifier, password string) (*models.AuthUser, string, error)
	VerifyEmail(ctx context.Context, token string) (*models.AuthUser, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirmPassword string) error
	ChangePassword(ctx context.Context, actor *auth.SessionClaims, currentPassword, newPassword string) error
}

type GatewayVerifier interface {
	Verify(token string) (string, error)
}

type SessionVerifier interface {
	VerifySessionToken(token string) (*auth.SessionClaims, error)
}

// maxBodyBytes bounds request bodies; profile pictures arrive inline.
const maxBodyBytes = 200 << 20

type HTTPServer struct {
	address  string
	service  AuthService
	gateway  GatewayVerifier
	sessions SessionVerifier
	logger   logging.Logger
	handler  http.Handler

	shutdownTimeout time.Duration
}

func NewHTTPServer(address string, l logging.Logger, service AuthService, gateway GatewayVerifier,
	sessions SessionVerifier, shutdownTimeout time.Duration) *HTTPServer {
	s := &HTTPServer{
		address:         address,
		service:         service,
		gateway:         gateway,
		sessions:        sessions,
		logger:          l.With("module", "http_server"),
		shutdownTimeout: shutdownTimeout,
	}
	s.handler = s.recoverMiddleware(s.loggingMiddleware(s.routes()))
	return s
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	r.HandleFunc("/auth-health", s.health).Methods(http.MethodGet)

	api := func(path string, h http.HandlerFunc) *mux.Route {
		return r.Handle(common.BasePath+path, s.gatewayMiddleware(s.sessionMiddleware(h)))
	}

	// Routes live on the root router so a method mismatch reaches
	// MethodNotAllowedHandler instead of falling through to NotFound.
	api("/signup", s.signup).Methods(http.MethodPost)
	api("/signin", s.signin).Methods(http.MethodPost)
	api("/verify-email", s.verifyEmail).Methods(http.MethodPut)
	api("/forgot-password", s.forgotPassword).Methods(http.MethodPut)
	api("/reset-password/{token}", s.resetPassword).Methods(http.MethodPut)
	api("/change-password", requireSession(http.HandlerFunc(s.changePassword)).ServeHTTP).Methods(http.MethodPut)

	return r
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx := context.Background()
		if s.shutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.shutdownTimeout)
			defer cancel()
		}
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-stopped
}
