package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KretovDmitry/ordermart/internal/config"
	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/KretovDmitry/ordermart/internal/models/errs"
	"github.com/KretovDmitry/ordermart/internal/models/order"
	"github.com/KretovDmitry/ordermart/internal/web"
	"github.com/KretovDmitry/ordermart/internal/week"
	"github.com/KretovDmitry/ordermart/pkg/logger"
	"github.com/KretovDmitry/ordermart/pkg/paginator"
	"github.com/shopspring/decimal"
)

// ClientDirectory looks up order owners.
type ClientDirectory interface {
	GetClientByID(ctx context.Context, id client.ID) (*client.Client, error)
	IsMemberOfGroup(ctx context.Context, id client.ID, group string) (bool, error)
	ListMembersOfGroup(ctx context.Context, group string) ([]*client.Client, error)
}

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
	clients  ClientDirectory
	trm      TxManager
	renderer Renderer
	logger   logger.Logger
	config   *config.Config
	now      func() time.Time
}

func NewService(
	repo Repository,
	clients ClientDirectory,
	trm TxManager,
	renderer Renderer,
	logger logger.Logger,
	config *config.Config,
) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if clients == nil {
		return nil, errors.New("nil dependency: client directory")
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
		clients:  clients,
		trm:      trm,
		renderer: renderer,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}, nil
}

var _ ServerInterface = (*Service)(nil)

// Today returns the current time in the configured location.
func (s *Service) Today() time.Time {
	return s.now().In(s.config.Location())
}

// Report aggregates the orders of the given week per day.
func (s *Service) Report(ctx context.Context, w week.Week) (week.Summary, error) {
	dates := week.Dates(w.Year, w.Number, s.config.Location())

	orders, err := s.repo.ListOrdersByDateRange(ctx, dates[0], dates[6].AddDate(0, 0, 1))
	if err != nil {
		return week.Summary{}, err
	}

	return week.Aggregate(orders, dates), nil
}

// StoredTotal sums the week's totals on the store side.
func (s *Service) StoredTotal(ctx context.Context, w week.Week) (decimal.Decimal, error) {
	dates := week.Dates(w.Year, w.Number, s.config.Location())

	total, err := s.repo.SumTotal(ctx, dates[0], dates[6].AddDate(0, 0, 1))
	if err != nil {
		return decimal.Zero, err
	}

	return total.Round(2), nil
}

// NewOrderParams defines parameters for AddOrder.
type NewOrderParams struct {
	ClientID string
	Total    string
}

// AddOrder validates the raw form values and stores a new order placed now
// by a member of the customer group.
func (s *Service) AddOrder(ctx context.Context, params NewOrderParams) (*order.Order, error) {
	rawID := strings.TrimSpace(params.ClientID)
	rawTotal := strings.TrimSpace(params.Total)

	if rawID == "" {
		return nil, &errs.RequiredFormFieldError{FieldName: "user"}
	}
	if rawTotal == "" {
		return nil, &errs.RequiredFormFieldError{FieldName: "total_order"}
	}

	id, err := parseID(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: client id %q", errs.ErrInvalidRequest, rawID)
	}

	if !isAmount(rawTotal) {
		return nil, fmt.Errorf("%w: total %q", errs.ErrInvalidRequest, rawTotal)
	}
	total, err := decimal.NewFromString(rawTotal)
	if err != nil {
		return nil, fmt.Errorf("%w: total %q: %w", errs.ErrInvalidRequest, rawTotal, err)
	}

	o := order.New(client.ID(id), total, s.Today())

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		c, err := s.clients.GetClientByID(ctx, o.ClientID)
		if err != nil {
			return err
		}

		ok, err := s.clients.IsMemberOfGroup(ctx, c.ID, s.config.CustomerGroup)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("client %d: %w", c.ID, errs.ErrNotCustomer)
		}

		o.ID, err = s.repo.CreateOrder(ctx, o)
		if err != nil {
			return err
		}
		o.ClientName = c.DisplayName()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// DeleteOrder removes the order with the given raw id.
func (s *Service) DeleteOrder(ctx context.Context, rawID string) error {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return &errs.RequiredFormFieldError{FieldName: "order_id"}
	}

	id, err := parseID(rawID)
	if err != nil {
		return fmt.Errorf("%w: order id %q", errs.ErrInvalidRequest, rawID)
	}

	return s.repo.DeleteOrder(ctx, order.ID(id))
}

// Weekly statistics (GET, POST /).
func (s *Service) Index(w http.ResponseWriter, r *http.Request, params IndexParams) {
	ctx := r.Context()

	wk := week.ResolveWeek(params.WeekLabel, s.Today())
	if params.WeekLabel != "" && wk.String() != params.WeekLabel {
		s.logger.With(ctx).Debugf("week %q resolved to %s", params.WeekLabel, wk)
	}

	summary, err := s.Report(ctx, wk)
	if err != nil {
		s.fail(w, r, fmt.Errorf("weekly report %s: %w", wk, err))
		return
	}

	page, orders, err := s.listPage(ctx, order.ByDateDesc, params.Page)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.render(w, r, web.PageIndex, web.IndexPage{
		Layout:  web.Layout{Viewer: params.Viewer, ActivePage: "index"},
		Week:    wk,
		Summary: summary,
		Orders:  orders,
		Page:    page,
	})
}

// Order management (GET, POST /my_orders/).
func (s *Service) MyOrders(w http.ResponseWriter, r *http.Request, params MyOrdersParams) {
	ctx := r.Context()

	if params.Form != nil {
		s.submit(ctx, params.Viewer, params.Form)
	}

	customers, err := s.clients.ListMembersOfGroup(ctx, s.config.CustomerGroup)
	if err != nil {
		s.fail(w, r, fmt.Errorf("list customers: %w", err))
		return
	}

	page, orders, err := s.listPage(ctx, order.ByID, params.Page)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.render(w, r, web.PageMyOrders, web.MyOrdersPage{
		Layout:    web.Layout{Viewer: params.Viewer, ActivePage: "my_orders"},
		Orders:    orders,
		Customers: customers,
		Page:      page,
	})
}

// Form failures never reach the page, they are only logged.
func (s *Service) submit(ctx context.Context, viewer *client.Client, form *OrderForm) {
	log := s.logger.With(ctx, "staff", viewer.Username)

	if form.Tampered {
		log.Warnf("order form %q: decoy field tampered, ignored", form.Type)
		return
	}

	switch form.Type {
	case FormDeleteOrder:
		if err := s.DeleteOrder(ctx, form.OrderID); err != nil {
			log.Warnf("delete order %q: %s", form.OrderID, err)
			return
		}
		log.Infof("order %s deleted", strings.TrimSpace(form.OrderID))

	case FormNewOrder:
		o, err := s.AddOrder(ctx, NewOrderParams{ClientID: form.ClientID, Total: form.Total})
		if err != nil {
			log.Warnf("add order for client %q: %s", form.ClientID, err)
			return
		}
		log.Infof("order %d added for client %d: %s", o.ID, o.ClientID, o.Total.StringFixed(2))

	default:
		log.Warnf("unknown order form %q, ignored", form.Type)
	}
}

// All orders as JSON (GET /api/orders).
func (s *Service) GetOrders(w http.ResponseWriter, r *http.Request, params GetOrdersParams) {
	ctx := r.Context()

	orders, err := s.repo.ListOrders(ctx, order.ByDateDesc, 0, 0)
	if err != nil {
		s.logger.With(ctx).Errorf("list orders for %q: %s", params.Client.Username, err)
		ErrorHandlerFunc(w, r, err)
		return
	}

	serialized, err := order.Serialize(orders)
	if err != nil {
		s.logger.With(ctx).Errorf("serialize orders: %s", err)
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err = json.NewEncoder(w).Encode(map[string]string{"orders": serialized}); err != nil {
		s.logger.With(ctx).Errorf("encode orders: %s", err)
	}
}

func (s *Service) listPage(ctx context.Context, sort order.Sort, rawPage string) (paginator.Page, []*order.Order, error) {
	count, err := s.repo.CountOrders(ctx)
	if err != nil {
		return paginator.Page{}, nil, err
	}

	page := paginator.New(rawPage, count, s.config.PageSize)

	orders, err := s.repo.ListOrders(ctx, sort, page.Limit(), page.Offset())
	if err != nil {
		return paginator.Page{}, nil, err
	}

	return page, orders, nil
}

func (s *Service) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if err := s.renderer.Render(w, http.StatusOK, name, data); err != nil {
		s.fail(w, r, fmt.Errorf("render %s: %w", name, err))
	}
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.With(r.Context()).Errorf("%s %s: %s", r.Method, r.URL.Path, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Bad Request.
	case errors.Is(err, errs.ErrInvalidRequest):
		code = http.StatusBadRequest

	// Status Unauthorized.
	case errors.Is(err, errs.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", `Basic realm="Basic Auth Protected"`)
		code = http.StatusUnauthorized
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

// parseID accepts ASCII digits only.
func parseID(raw string) (int64, error) {
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseInt(raw, 10, 64)
}

// isAmount reports whether raw is digits with at most one decimal point,
// such as "10", "10.5", ".5" or "10.".
func isAmount(raw string) bool {
	digits, dots := 0, 0
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
