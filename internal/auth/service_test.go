package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/KretovDmitry/ordermart/internal/config"
	"github.com/KretovDmitry/ordermart/internal/jwt"
	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/KretovDmitry/ordermart/internal/models/errs"
	"github.com/KretovDmitry/ordermart/internal/web"
	"github.com/KretovDmitry/ordermart/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const signingKey = "Kyoto"

func testConfig() *config.Config {
	return &config.Config{
		CustomerGroup:    "customers",
		PasswordHashCost: bcrypt.MinCost,
		JWT: config.JWT{
			SigningKey: signingKey,
			Expiration: time.Hour,
		},
	}
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// Returns a directory with an active staff member "boss",
// an active customer "ivan" and an inactive client "gone".
func seededRepository(t *testing.T) *mockRepository {
	t.Helper()
	return &mockRepository{
		items: []client.Client{
			{ID: 1, Username: "boss", Password: hash(t, "secret"), FirstName: "Anna", LastName: "Petrova", IsActive: true, IsStaff: true},
			{ID: 2, Username: "ivan", Password: hash(t, "secret"), FirstName: "Ivan", LastName: "Ivanov", IsActive: true},
			{ID: 3, Username: "gone", Password: hash(t, "secret"), IsActive: false},
		},
		groups: map[string][]client.ID{"customers": {2}},
	}
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()

	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	log, _ := logger.NewForTest()

	s, err := NewService(repo, mockTxManager{}, renderer, log, testConfig())
	require.NoError(t, err)

	return s
}

func TestNewServiceNilDependencies(t *testing.T) {
	log, _ := logger.NewForTest()
	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	_, err = NewService(nil, mockTxManager{}, renderer, log, testConfig())
	assert.Error(t, err)
	_, err = NewService(&mockRepository{}, nil, renderer, log, testConfig())
	assert.Error(t, err)
	_, err = NewService(&mockRepository{}, mockTxManager{}, nil, log, testConfig())
	assert.Error(t, err)
	_, err = NewService(&mockRepository{}, mockTxManager{}, renderer, nil, testConfig())
	assert.Error(t, err)
	_, err = NewService(&mockRepository{}, mockTxManager{}, renderer, log, nil)
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	s := newTestService(t, seededRepository(t))

	tests := []struct {
		name     string
		username string
		password string
		wantID   client.ID
		wantErr  error
	}{
		{name: "OK", username: "boss", password: "secret", wantID: 1},
		{name: "wrong password", username: "boss", password: "Secret", wantErr: errs.ErrInvalidCredentials},
		{name: "unknown username", username: "nobody", password: "secret", wantErr: errs.ErrInvalidCredentials},
		{name: "empty password", username: "boss", password: "", wantErr: errs.ErrInvalidCredentials},
		{name: "empty username", username: "", password: "secret", wantErr: errs.ErrInvalidCredentials},
		{name: "inactive", username: "gone", password: "secret", wantErr: errs.ErrInactive},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := s.Authenticate(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, c.ID)
		})
	}
}

func TestAuthenticateRepositoryFailure(t *testing.T) {
	s := newTestService(t, seededRepository(t))

	_, err := s.Authenticate(context.Background(), "panic", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errs.ErrInvalidCredentials)
}

func TestCreateClient(t *testing.T) {
	repo := seededRepository(t)
	s := newTestService(t, repo)
	ctx := context.Background()

	c, err := s.CreateClient(ctx, CreateClientParams{
		Username:  "olga",
		Password:  "pa55word",
		FirstName: "Olga",
		LastName:  "Sidorova",
		Customer:  true,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, c.ID)
	assert.True(t, c.IsActive)
	assert.False(t, c.IsStaff)
	assert.NotEqual(t, "pa55word", c.Password)

	ok, err := repo.IsMemberOfGroup(ctx, c.ID, "customers")
	require.NoError(t, err)
	assert.True(t, ok, "customer must join the customer group")

	authenticated, err := s.Authenticate(ctx, "olga", "pa55word")
	require.NoError(t, err)
	assert.Equal(t, c.ID, authenticated.ID)

	_, err = s.CreateClient(ctx, CreateClientParams{Username: "olga", Password: "x"})
	assert.ErrorIs(t, err, errs.ErrDataConflict)

	_, err = s.CreateClient(ctx, CreateClientParams{Username: "", Password: "x"})
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)

	_, err = s.CreateClient(ctx, CreateClientParams{Username: "long", Password: strings.Repeat("x", 73)})
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestAddToGroup(t *testing.T) {
	repo := seededRepository(t)
	s := newTestService(t, repo)
	ctx := context.Background()

	require.NoError(t, s.AddToGroup(ctx, "boss", "customers"))

	members, err := repo.ListMembersOfGroup(ctx, "customers")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Ivanov Ivan", members[0].DisplayName())
	assert.Equal(t, "Petrova Anna", members[1].DisplayName())

	assert.ErrorIs(t, s.AddToGroup(ctx, "boss", "customers"), errs.ErrDataConflict)
	assert.ErrorIs(t, s.AddToGroup(ctx, "nobody", "customers"), errs.ErrNotFound)
	assert.ErrorIs(t, s.AddToGroup(ctx, "boss", ""), errs.ErrInvalidRequest)
}

func newRouter(t *testing.T, s *Service) chi.Router {
	t.Helper()

	r := chi.NewRouter()
	r.Use(s.Middleware)
	HandlerWithOptions(s, ChiServerOptions{BaseRouter: r})
	r.With(s.BasicAuth).Get("/api", func(w http.ResponseWriter, r *http.Request) {
		c, ok := client.FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(c.Username))
	})

	return r
}

func TestLogin(t *testing.T) {
	s := newTestService(t, seededRepository(t))
	router := newRouter(t, s)

	type want struct {
		statusCode int
		location   string
		cookie     bool
	}

	tests := []struct {
		name     string
		username string
		password string
		want     want
	}{
		{
			name:     "staff goes to order management",
			username: "boss",
			password: "secret",
			want:     want{statusCode: http.StatusSeeOther, location: "/my_orders/", cookie: true},
		},
		{
			name:     "customer goes home",
			username: "ivan",
			password: "secret",
			want:     want{statusCode: http.StatusSeeOther, location: "/", cookie: true},
		},
		{
			name:     "wrong password",
			username: "boss",
			password: "nope",
			want:     want{statusCode: http.StatusUnauthorized},
		},
		{
			name:     "inactive",
			username: "gone",
			password: "secret",
			want:     want{statusCode: http.StatusUnauthorized},
		},
		{
			name:     "empty form",
			username: "",
			password: "",
			want:     want{statusCode: http.StatusUnauthorized},
		},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			form := url.Values{"username": {tt.username}, "password": {tt.password}}
			r := httptest.NewRequest(http.MethodPost, "/login/", strings.NewReader(form.Encode()))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			res := w.Result()
			defer res.Body.Close()

			assert.Equal(t, tt.want.statusCode, res.StatusCode, "status mismatch")
			assert.Equal(t, tt.want.location, res.Header.Get("Location"), "location mismatch")

			var session *http.Cookie
			for _, c := range res.Cookies() {
				if c.Name == cookieName {
					session = c
				}
			}
			if !tt.want.cookie {
				assert.Nil(t, session)
				assert.Contains(t, w.Body.String(), "Invalid username or password.")
				return
			}
			require.NotNil(t, session)
			assert.True(t, session.HttpOnly)

			id, err := jwt.GetClientID(session.Value, signingKey)
			require.NoError(t, err)
			assert.NotZero(t, id)
		})
	}
}

func TestLoginPageShowsViewer(t *testing.T) {
	s := newTestService(t, seededRepository(t))
	router := newRouter(t, s)

	token, err := jwt.BuildString(1, signingKey, time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/login/", nil)
	r.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Petrova Anna")
	assert.Contains(t, w.Body.String(), `name="password"`)
}

func TestLogout(t *testing.T) {
	s := newTestService(t, seededRepository(t))
	router := newRouter(t, s)

	r := httptest.NewRequest(http.MethodGet, "/logout/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/", res.Header.Get("Location"))
	require.Len(t, res.Cookies(), 1)
	assert.Equal(t, cookieName, res.Cookies()[0].Name)
	assert.Equal(t, -1, res.Cookies()[0].MaxAge)
}

func TestMiddleware(t *testing.T) {
	s := newTestService(t, seededRepository(t))

	valid, err := jwt.BuildString(2, signingKey, time.Hour)
	require.NoError(t, err)
	inactive, err := jwt.BuildString(3, signingKey, time.Hour)
	require.NoError(t, err)
	unknown, err := jwt.BuildString(99, signingKey, time.Hour)
	require.NoError(t, err)
	forged, err := jwt.BuildString(2, "Osaka", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		cookie string
		wantID client.ID
	}{
		{name: "valid session", cookie: valid, wantID: 2},
		{name: "no cookie"},
		{name: "inactive client", cookie: inactive},
		{name: "unknown client", cookie: unknown},
		{name: "forged token", cookie: forged},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				got *client.Client
				ok  bool
			)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, ok = client.FromContext(r.Context())
			})

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: cookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			s.Middleware(next).ServeHTTP(w, r)

			assert.Equal(t, http.StatusOK, w.Code)
			if tt.wantID == 0 {
				assert.False(t, ok, "request must stay anonymous")
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestBasicAuth(t *testing.T) {
	s := newTestService(t, seededRepository(t))
	router := newRouter(t, s)

	sessionToken, err := jwt.BuildString(1, signingKey, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		statusCode int
		body       string
	}{
		{
			name:       "OK",
			prepare:    func(r *http.Request) { r.SetBasicAuth("ivan", "secret") },
			statusCode: http.StatusOK,
			body:       "ivan",
		},
		{
			name:       "no credentials",
			prepare:    func(r *http.Request) {},
			statusCode: http.StatusUnauthorized,
		},
		{
			name:       "wrong password",
			prepare:    func(r *http.Request) { r.SetBasicAuth("ivan", "nope") },
			statusCode: http.StatusUnauthorized,
		},
		{
			name:       "inactive",
			prepare:    func(r *http.Request) { r.SetBasicAuth("gone", "secret") },
			statusCode: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Basic !!!") },
			statusCode: http.StatusUnauthorized,
		},
		{
			name: "session cookie is not enough",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: cookieName, Value: sessionToken})
			},
			statusCode: http.StatusUnauthorized,
		},
		{
			name:       "store failure",
			prepare:    func(r *http.Request) { r.SetBasicAuth("panic", "secret") },
			statusCode: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/api", nil)
			tt.prepare(r)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			assert.Equal(t, tt.statusCode, w.Code, "status mismatch")
			if tt.statusCode == http.StatusUnauthorized {
				assert.Equal(t, basicChallenge, w.Header().Get("WWW-Authenticate"))
				return
			}
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestErrorHandlerFunc(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "invalid request", err: &errs.RequiredFormFieldError{FieldName: "username"}, statusCode: http.StatusBadRequest},
		{name: "conflict", err: errs.ErrDataConflict, statusCode: http.StatusConflict},
		{name: "credentials", err: errs.ErrInvalidCredentials, statusCode: http.StatusUnauthorized},
		{name: "unexpected", err: context.DeadlineExceeded, statusCode: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			ErrorHandlerFunc(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}
