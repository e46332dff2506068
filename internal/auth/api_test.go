package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuthService struct {
	login  *LoginParams
	viewer *client.Client
	mu     sync.Mutex
}

func (m *mockAuthService) LoginPage(w http.ResponseWriter, r *http.Request, viewer *client.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewer = viewer
}

func (m *mockAuthService) Login(w http.ResponseWriter, r *http.Request, params LoginParams) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.login = &params
}

func (m *mockAuthService) Logout(w http.ResponseWriter, r *http.Request) {}

func TestLoginOperationMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		payload     string
		want        LoginParams
	}{
		{
			name:        "OK",
			contentType: "application/x-www-form-urlencoded",
			payload:     "username=boss&password=secret",
			want:        LoginParams{Username: "boss", Password: "secret"},
		},
		{
			name:        "username is trimmed, password is not",
			contentType: "application/x-www-form-urlencoded",
			payload:     "username=+boss+&password=+secret+",
			want:        LoginParams{Username: "boss", Password: " secret "},
		},
		{
			name:        "missing username",
			contentType: "application/x-www-form-urlencoded",
			payload:     "password=",
			want:        LoginParams{},
		},
		{
			name:        "query string is ignored",
			contentType: "application/x-www-form-urlencoded",
			payload:     "",
			want:        LoginParams{},
		},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, "/login/?username=query", strings.NewReader(tt.payload))
			r.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()

			handler := &mockAuthService{}
			siw := ServerInterfaceWrapper{
				Handler:          handler,
				ErrorHandlerFunc: ErrorHandlerFunc,
			}

			siw.Login(w, r)

			require.NotNil(t, handler.login)
			assert.Equal(t, tt.want, *handler.login)
		})
	}
}

func TestLoginOperationMiddlewareBadBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login/", strings.NewReader("%zz"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	handler := &mockAuthService{}
	siw := ServerInterfaceWrapper{
		Handler:          handler,
		ErrorHandlerFunc: ErrorHandlerFunc,
	}

	siw.Login(w, r)

	assert.Nil(t, handler.login)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginPageOperationMiddleware(t *testing.T) {
	viewer := &client.Client{ID: 1, Username: "boss"}

	r := httptest.NewRequest(http.MethodGet, "/login/", nil)
	r = r.WithContext(client.NewContext(r.Context(), viewer))
	w := httptest.NewRecorder()

	handler := &mockAuthService{}
	siw := ServerInterfaceWrapper{
		Handler:          handler,
		ErrorHandlerFunc: ErrorHandlerFunc,
	}

	siw.LoginPage(w, r)

	assert.Same(t, viewer, handler.viewer)
}
