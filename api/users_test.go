package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Domenick1991/aerobound/internal/domain"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/Domenick1991/aerobound/internal/service/user"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockUserUseCase is a mock implementation of user.UserUseCase
type MockUserUseCase struct {
	mock.Mock
}

func (m *MockUserUseCase) Register(ctx context.Context, email, password string) (*domain.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserUseCase) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockUserUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserUseCase) ChangePassword(ctx context.Context, id uuid.UUID, oldPassword, newPassword string) error {
	return m.Called(ctx, id, oldPassword, newPassword).Error(0)
}

func (m *MockUserUseCase) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockUserUseCase) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserUseCase) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

func newUserRouter(service user.UserUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewUserHandler(service).Register(r.Group(""), requireAuth())
	return r
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUserHandler_register(t *testing.T) {
	id := uuid.New()
	testCases := []struct {
		name       string
		body       string
		setup      func(m *MockUserUseCase)
		wantStatus int
		wantBody   string
	}{
		{
			name: "success",
			body: `{"email":"jane@example.com","password":"hunter22"}`,
			setup: func(m *MockUserUseCase) {
				m.On("Register", mock.Anything, "jane@example.com", "hunter22").Return(&domain.User{ID: id, Email: "jane@example.com"}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   fmt.Sprintf(`{"id":%q,"email":"jane@example.com"}`, id),
		},
		{
			name: "email taken",
			body: `{"email":"jane@example.com","password":"hunter22"}`,
			setup: func(m *MockUserUseCase) {
				m.On("Register", mock.Anything, "jane@example.com", "hunter22").Return(nil, fmt.Errorf("create user: %w", repository.ErrEmailTaken))
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Email already registered"}`,
		},
		{
			name: "store failure",
			body: `{"email":"jane@example.com","password":"hunter22"}`,
			setup: func(m *MockUserUseCase) {
				m.On("Register", mock.Anything, "jane@example.com", "hunter22").Return(nil, errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Registration failed, try again later."}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &MockUserUseCase{}
			tc.setup(mockService)

			w := httptest.NewRecorder()
			newUserRouter(mockService).ServeHTTP(w, postJSON("/register/", tc.body))

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.JSONEq(t, tc.wantBody, w.Body.String())
		})
	}

	t.Run("invalid email", func(t *testing.T) {
		mockService := &MockUserUseCase{}

		w := httptest.NewRecorder()
		newUserRouter(mockService).ServeHTTP(w, postJSON("/register/", `{"email":"jane","password":"hunter22"}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUserHandler_login(t *testing.T) {
	mockService := &MockUserUseCase{}
	mockService.On("Login", mock.Anything, "jane@example.com", "hunter22").Return("signed-token", nil)
	mockService.On("Login", mock.Anything, "jane@example.com", "wrong").Return("", user.ErrInvalidCredentials)
	router := newUserRouter(mockService)

	login := func(username, password string) *httptest.ResponseRecorder {
		form := url.Values{"username": {username}, "password": {password}}
		req := httptest.NewRequest("POST", "/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := login("jane@example.com", "hunter22")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"access_token":"signed-token","token_type":"bearer"}`, w.Body.String())

	w = login("jane@example.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"error":"Incorrect email or password"}`, w.Body.String())

	w = login("", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_forgotPassword(t *testing.T) {
	want := `{"success":true,"message":"If your email is registered, you will receive a password reset link shortly."}`

	for name, err := range map[string]error{"sent": nil, "failed": errors.New("smtp down")} {
		t.Run(name, func(t *testing.T) {
			mockService := &MockUserUseCase{}
			mockService.On("ForgotPassword", mock.Anything, "jane@example.com").Return(err)

			w := httptest.NewRecorder()
			newUserRouter(mockService).ServeHTTP(w, postJSON("/forgot-password/", `{"email":"jane@example.com"}`))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, want, w.Body.String())
		})
	}
}

func TestUserHandler_verifyResetToken(t *testing.T) {
	mockService := &MockUserUseCase{}
	mockService.On("VerifyResetToken", mock.Anything, "good").Return(true, nil)
	mockService.On("VerifyResetToken", mock.Anything, "stale").Return(false, nil)
	router := newUserRouter(mockService)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/verify-reset-token/good", nil))
	assert.JSONEq(t, `{"valid":true,"message":"Token is valid"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/verify-reset-token/stale", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":false,"message":"Token is invalid or has expired"}`, w.Body.String())
}

func TestUserHandler_resetPassword(t *testing.T) {
	mockService := &MockUserUseCase{}
	mockService.On("ResetPassword", mock.Anything, "good", "correct-horse").Return(nil)
	mockService.On("ResetPassword", mock.Anything, "stale", "correct-horse").Return(user.ErrInvalidResetToken)
	router := newUserRouter(mockService)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, postJSON("/reset-password/", `{"token":"good","new_password":"correct-horse","confirm_password":"correct-horse"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Password has been reset successfully"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, postJSON("/reset-password/", `{"token":"stale","new_password":"correct-horse","confirm_password":"correct-horse"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid or expired reset token"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, postJSON("/reset-password/", `{"token":"good","new_password":"correct-horse","confirm_password":"battery-staple"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, postJSON("/reset-password/", `{"token":"good","new_password":"short","confirm_password":"short"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mockService.AssertNumberOfCalls(t, "ResetPassword", 2)
}

func TestUserHandler_me(t *testing.T) {
	mockService := &MockUserUseCase{}
	router := newUserRouter(mockService)
	id := uuid.New()

	req := httptest.NewRequest("GET", "/me/", nil)
	req.Header.Set("Authorization", bearer(t, id))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%q,"email":"jane@example.com"}`, id), w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/me/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandler_changePassword(t *testing.T) {
	id := uuid.New()
	mockService := &MockUserUseCase{}
	mockService.On("ChangePassword", mock.Anything, id, "hunter22", "correct-horse").Return(nil)
	mockService.On("ChangePassword", mock.Anything, id, "nope", "correct-horse").Return(user.ErrWrongPassword)
	router := newUserRouter(mockService)

	change := func(oldPassword string) *httptest.ResponseRecorder {
		body := fmt.Sprintf(`{"old_password":%q,"new_password":"correct-horse","confirm_password":"correct-horse"}`, oldPassword)
		req := postJSON("/change-password/", body)
		req.Header.Set("Authorization", bearer(t, id))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := change("hunter22")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Password has been changed successfully"}`, w.Body.String())

	w = change("nope")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Old password is incorrect"}`, w.Body.String())
}
