package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KretovDmitry/ordermart/internal/config"
	"github.com/KretovDmitry/ordermart/internal/jwt"
	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/KretovDmitry/ordermart/internal/models/errs"
	"github.com/KretovDmitry/ordermart/internal/web"
	"github.com/KretovDmitry/ordermart/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// Name of the session cookie.
const cookieName = "Authorization"

// Challenge sent with every 401 of the Basic-auth protected API.
const basicChallenge = `Basic realm="Basic Auth Protected"`

// TxManager runs fn inside a transaction carried by the context.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Renderer writes HTML pages.
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, data any) error
}

type Service struct {
	repo     Repository
	trm      TxManager
	renderer Renderer
	logger   logger.Logger
	config   *config.Config
}

func NewService(
	repo Repository,
	trm TxManager,
	renderer Renderer,
	logger logger.Logger,
	config *config.Config,
) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if renderer == nil {
		return nil, errors.New("nil dependency: renderer")
	}
	if logger == nil {
		return nil, errors.New("nil dependency: logger")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}

	return &Service{
		repo:     repo,
		trm:      trm,
		renderer: renderer,
		logger:   logger,
		config:   config,
	}, nil
}

var _ ServerInterface = (*Service)(nil)

// Authenticate checks the credentials against the client directory.
// Unknown usernames and wrong passwords both yield errs.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*client.Client, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: empty username or password", errs.ErrInvalidCredentials)
	}

	c, err := s.repo.GetClientByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: client %q not found", errs.ErrInvalidCredentials, username)
		}
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, fmt.Errorf("%w: password", errs.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("compare passwords: %w", err)
	}

	if !c.IsActive {
		return nil, fmt.Errorf("%q: %w", username, errs.ErrInactive)
	}

	return c, nil
}

// CreateClientParams defines parameters for CreateClient.
type CreateClientParams struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Staff     bool
	// Customer adds the client to the configured customer group.
	Customer bool
}

// CreateClient stores a new active client with a hashed password.
func (s *Service) CreateClient(ctx context.Context, params CreateClientParams) (*client.Client, error) {
	if params.Username == "" {
		return nil, &errs.RequiredFormFieldError{FieldName: "username"}
	}
	if params.Password == "" {
		return nil, &errs.RequiredFormFieldError{FieldName: "password"}
	}
	// bcrypt ignores everything past 72 bytes.
	if len(params.Password) > 72 {
		return nil, fmt.Errorf("%w: password must not exceed 72 bytes in length", errs.ErrInvalidRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.config.PasswordHashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	c := &client.Client{
		Username:  params.Username,
		Password:  string(hash),
		FirstName: params.FirstName,
		LastName:  params.LastName,
		IsActive:  true,
		IsStaff:   params.Staff,
	}

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		id, err := s.repo.CreateClient(ctx, c)
		if err != nil {
			return err
		}
		c.ID = id

		if params.Customer {
			return s.repo.AddToGroup(ctx, id, s.config.CustomerGroup)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// AddToGroup grants group membership to the client with the given username.
func (s *Service) AddToGroup(ctx context.Context, username, group string) error {
	if group == "" {
		return &errs.RequiredFormFieldError{FieldName: "group"}
	}

	return s.trm.Do(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetClientByUsername(ctx, username)
		if err != nil {
			return err
		}
		return s.repo.AddToGroup(ctx, c.ID, group)
	})
}

// ListClients returns every client ordered by id.
func (s *Service) ListClients(ctx context.Context) ([]*client.Client, error) {
	return s.repo.ListClients(ctx)
}

// Sign in form (GET /login/).
func (s *Service) LoginPage(w http.ResponseWriter, r *http.Request, viewer *client.Client) {
	s.renderLogin(w, r, http.StatusOK, web.LoginPage{
		Layout: web.Layout{Viewer: viewer, ActivePage: "login"},
	})
}

// Sign in (POST /login/).
func (s *Service) Login(w http.ResponseWriter, r *http.Request, params LoginParams) {
	c, err := s.Authenticate(r.Context(), params.Username, params.Password)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) || errors.Is(err, errs.ErrInactive) {
			s.logger.With(r.Context()).Warnf("login: %s", err)
			s.renderLogin(w, r, http.StatusUnauthorized, web.LoginPage{
				Layout:   web.Layout{ActivePage: "login"},
				Username: params.Username,
				Error:    "Invalid username or password.",
			})
			return
		}
		s.logger.With(r.Context()).Errorf("login: %s", err)
		ErrorHandlerFunc(w, r, err)
		return
	}

	// Build authentication token.
	authToken, err := jwt.BuildString(c.ID, s.config.JWT.SigningKey, s.config.JWT.Expiration)
	if err != nil {
		s.logger.With(r.Context()).Errorf("build token: %s", err)
		ErrorHandlerFunc(w, r, fmt.Errorf("build token: %w", err))
		return
	}

	// Set the "Authorization" cookie with the JWT authentication token.
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    authToken,
		Path:     "/",
		Expires:  time.Now().Add(s.config.JWT.Expiration),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	target := "/"
	if c.IsStaff {
		target = "/my_orders/"
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Sign out (GET /logout/).
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Service) renderLogin(w http.ResponseWriter, r *http.Request, status int, page web.LoginPage) {
	if err := s.renderer.Render(w, status, web.PageLogin, page); err != nil {
		s.logger.With(r.Context()).Errorf("render login: %s", err)
		ErrorHandlerFunc(w, r, err)
	}
}

// Middleware puts the signed in client into the request context.
// Requests without a valid session continue anonymously.
func (s *Service) Middleware(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		authCookie, err := r.Cookie(cookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		clientID, err := jwt.GetClientID(authCookie.Value, s.config.JWT.SigningKey)
		if err != nil {
			s.logger.With(r.Context()).Debugf("parse session token: %s", err)
			next.ServeHTTP(w, r)
			return
		}

		c, err := s.repo.GetClientByID(r.Context(), clientID)
		if err != nil {
			if !errors.Is(err, errs.ErrNotFound) {
				s.logger.With(r.Context()).Warnf("session client: %s", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		if !c.IsActive {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(client.NewContext(r.Context(), c)))
	}

	return http.HandlerFunc(f)
}

// BasicAuth requires valid HTTP Basic credentials of an active client and
// puts that client into the request context.
func (s *Service) BasicAuth(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: no basic credentials", errs.ErrInvalidCredentials))
			return
		}

		c, err := s.Authenticate(r.Context(), username, password)
		if err != nil {
			if !errors.Is(err, errs.ErrInvalidCredentials) && !errors.Is(err, errs.ErrInactive) {
				s.logger.With(r.Context()).Errorf("basic auth: %s", err)
			}
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: %w", errs.ErrInvalidCredentials, err))
			return
		}

		next.ServeHTTP(w, r.WithContext(client.NewContext(r.Context(), c)))
	}

	return http.HandlerFunc(f)
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
// Any authentication failure becomes 401 with the Basic challenge.
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Unauthorized.
	case errors.Is(err, errs.ErrInvalidCredentials) ||
		errors.Is(err, errs.ErrInactive):
		w.Header().Set("WWW-Authenticate", basicChallenge)
		code = http.StatusUnauthorized
		errJSON.Error = errs.ErrInvalidCredentials.Error()

	// Status Bad Request.
	case errors.Is(err, errs.ErrInvalidRequest):
		code = http.StatusBadRequest

	// Status Conflict.
	case errors.Is(err, errs.ErrDataConflict):
		code = http.StatusConflict
	}

	if code == http.StatusInternalServerError {
		errJSON.Error = http.StatusText(code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
