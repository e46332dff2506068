package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/KretovDmitry/ordermart/internal/models/errs"
	"github.com/go-chi/chi/v5"
)

// LoginParams defines parameters for Login.
type LoginParams struct {
	Username string
	Password string
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Sign in form (GET /login/)
	LoginPage(w http.ResponseWriter, r *http.Request, viewer *client.Client)
	// Sign in (POST /login/)
	Login(w http.ResponseWriter, r *http.Request, params LoginParams)
	// Sign out (GET /logout/)
	Logout(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts form payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
	HandlerMiddlewares []MiddlewareFunc
}

type MiddlewareFunc func(http.Handler) http.Handler

// LoginPage operation middleware.
func (siw *ServerInterfaceWrapper) LoginPage(w http.ResponseWriter, r *http.Request) {
	viewer, _ := client.FromContext(r.Context())

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.LoginPage(w, r, viewer)
	})
}

// Login operation middleware.
func (siw *ServerInterfaceWrapper) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %w", errs.ErrInvalidRequest, err))
		return
	}

	params := LoginParams{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.Login(w, r, params)
	})
}

// Logout operation middleware.
func (siw *ServerInterfaceWrapper) Logout(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Logout)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, f http.HandlerFunc) {
	handler := http.Handler(f)

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
}

// Handler creates http.Handler with the session routes.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux creates http.Handler with the session routes on the given router.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = ErrorHandlerFunc
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/login/", wrapper.LoginPage)
		r.Post(options.BaseURL+"/login/", wrapper.Login)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/logout/", wrapper.Logout)
	})

	return r
}
