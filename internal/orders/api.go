package orders

import (
	"fmt"
	"net/http"

	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/KretovDmitry/ordermart/internal/models/errs"
	"github.com/go-chi/chi/v5"
)

// Values of the type_form field of the order management page.
const (
	FormNewOrder    = "new_order"
	FormDeleteOrder = "delete_order"
)

// IndexParams defines parameters for Index.
type IndexParams struct {
	// Viewer is nil for anonymous requests.
	Viewer *client.Client
	// WeekLabel is the requested "YYYY-Www" week, empty for the current one.
	WeekLabel string
	// Page is the raw page query parameter.
	Page string
}

// OrderForm is a submitted form of the order management page.
type OrderForm struct {
	Type     string
	OrderID  string
	ClientID string
	Total    string
	// Tampered is set when the decoy field is missing or filled in.
	Tampered bool
}

// MyOrdersParams defines parameters for MyOrders.
type MyOrdersParams struct {
	// Viewer is always an active staff member.
	Viewer *client.Client
	// Form is nil for GET requests.
	Form *OrderForm
	Page string
}

// GetOrdersParams defines parameters for GetOrders.
type GetOrdersParams struct {
	// Client authenticated with Basic credentials.
	Client *client.Client
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Weekly statistics (GET, POST /)
	Index(w http.ResponseWriter, r *http.Request, params IndexParams)
	// Order management (GET, POST /my_orders/)
	MyOrders(w http.ResponseWriter, r *http.Request, params MyOrdersParams)
	// All orders as JSON (GET /api/orders)
	GetOrders(w http.ResponseWriter, r *http.Request, params GetOrdersParams)
}

// ServerInterfaceWrapper converts forms to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
	HandlerMiddlewares []MiddlewareFunc
}

type MiddlewareFunc func(http.Handler) http.Handler

// Index operation middleware.
func (siw *ServerInterfaceWrapper) Index(w http.ResponseWriter, r *http.Request) {
	viewer, _ := client.FromContext(r.Context())

	params := IndexParams{
		Viewer: viewer,
		Page:   r.URL.Query().Get("page"),
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %w", errs.ErrInvalidRequest, err))
			return
		}

		// ------------- Decoy form field "week_id2" -------------------

		if decoyIntact(r, "week_id2") {
			params.WeekLabel = r.PostForm.Get("week_id")
		}
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.Index(w, r, params)
	})
}

// MyOrders operation middleware.
func (siw *ServerInterfaceWrapper) MyOrders(w http.ResponseWriter, r *http.Request) {
	viewer, ok := client.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !viewer.IsStaff {
		http.Redirect(w, r, "/logout/", http.StatusSeeOther)
		return
	}

	params := MyOrdersParams{
		Viewer: viewer,
		Page:   r.URL.Query().Get("page"),
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %w", errs.ErrInvalidRequest, err))
			return
		}

		params.Form = &OrderForm{
			Type:     r.PostForm.Get("type_form"),
			OrderID:  r.PostForm.Get("order_id"),
			ClientID: r.PostForm.Get("user"),
			Total:    r.PostForm.Get("total_order"),
			Tampered: !decoyIntact(r, "type_form1"),
		}
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.MyOrders(w, r, params)
	})
}

// GetOrders operation middleware.
func (siw *ServerInterfaceWrapper) GetOrders(w http.ResponseWriter, r *http.Request) {
	c, ok := client.FromContext(r.Context())
	if !ok {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: no client", errs.ErrInvalidCredentials))
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetOrders(w, r, GetOrdersParams{Client: c})
	})
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, f http.HandlerFunc) {
	handler := http.Handler(f)

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

// A decoy field is intact when it was submitted and left empty.
func decoyIntact(r *http.Request, field string) bool {
	values, ok := r.PostForm[field]
	return ok && len(values) > 0 && values[0] == ""
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
	// APIMiddlewares guard /api/orders and must put the authenticated
	// client into the request context.
	APIMiddlewares []func(http.Handler) http.Handler
}

// Handler creates http.Handler with the order routes.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux creates http.Handler with the order routes on the given router.
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
		r.Get(options.BaseURL+"/", wrapper.Index)
		r.Post(options.BaseURL+"/", wrapper.Index)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/my_orders/", wrapper.MyOrders)
		r.Post(options.BaseURL+"/my_orders/", wrapper.MyOrders)
	})
	r.Group(func(r chi.Router) {
		r.Use(options.APIMiddlewares...)
		r.Get(options.BaseURL+"/api/orders", wrapper.GetOrders)
	})

	return r
}
