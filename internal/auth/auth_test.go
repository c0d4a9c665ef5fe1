package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lamanada/tickets-api/internal/config"
	"github.com/lamanada/tickets-api/internal/database/dbtest"
	"github.com/lamanada/tickets-api/internal/models"
)

func TestHandleMe(t *testing.T) {
	db := dbtest.New(t)

	staff := models.Staff{Email: "porta@lamanada.com", Name: "Porta 1", Avatar: "avatar_url"}
	if err := db.Create(&staff).Error; err != nil {
		t.Fatalf("creating staff: %v", err)
	}

	cfg := &config.Config{JWTSecret: "test-secret"}
	handler := NewAuthHandler(cfg, db)

	t.Run("Authenticated", func(t *testing.T) {
		token, _ := handler.GenerateToken(staff.ID)
		input := &AuthInput{
			Cookie: "theme=dark; " + CookieName + "=" + token,
		}
		resp, err := handler.HandleMe(context.Background(), input)
		if err != nil {
			t.Fatalf("HandleMe returned error: %v", err)
		}

		if resp.Body.Email != staff.Email {
			t.Errorf("expected email %s, got %s", staff.Email, resp.Body.Email)
		}
		if resp.Body.Name != staff.Name {
			t.Errorf("expected name %s, got %s", staff.Name, resp.Body.Name)
		}
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := handler.HandleMe(context.Background(), &AuthInput{})
		assertStatus(t, err, http.StatusUnauthorized)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"staff_id": staff.ID,
			"exp":      time.Now().Add(-time.Minute).Unix(),
		}).SignedString([]byte(cfg.JWTSecret))

		_, err := handler.HandleMe(context.Background(), &AuthInput{Cookie: CookieName + "=" + token})
		assertStatus(t, err, http.StatusUnauthorized)
	})

	t.Run("UnknownStaff", func(t *testing.T) {
		token, _ := handler.GenerateToken("ghost")
		_, err := handler.HandleMe(context.Background(), &AuthInput{Cookie: CookieName + "=" + token})
		assertStatus(t, err, http.StatusUnauthorized)
	})
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	handler := NewAuthHandler(&config.Config{JWTSecret: "test-secret"}, nil)

	token, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"staff_id": "staff-1",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	if _, _, err := handler.ParseToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestHandleLogin_SetsState(t *testing.T) {
	handler := NewAuthHandler(&config.Config{
		OAuthClientID: "client",
		OAuthAuthURL:  "https://accounts.example.com/auth",
	}, nil)

	rr := httptest.NewRecorder()
	handler.HandleLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	if rr.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect, got %d", rr.Code)
	}

	var state string
	for _, c := range rr.Result().Cookies() {
		if c.Name == stateCookieName {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatal("expected state cookie")
	}

	loc, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}
	if loc.Query().Get("state") != state {
		t.Errorf("redirect state %q does not match cookie %q", loc.Query().Get("state"), state)
	}
}

func TestHandleCallback(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(r.URL.Query().Get("as")))
		}
	}))
	defer provider.Close()

	newHandler := func(t *testing.T, userInfo string) (*AuthHandler, *config.Config) {
		cfg := &config.Config{
			JWTSecret:        "test-secret",
			OAuthClientID:    "client",
			OAuthTokenURL:    provider.URL + "/token",
			OAuthUserInfoURL: provider.URL + "/userinfo?as=" + url.QueryEscape(userInfo),
			StaffEmails:      []string{"porta@lamanada.com"},
			FrontendURL:      "http://127.0.0.1:3000/dashboard",
		}
		return NewAuthHandler(cfg, dbtest.New(t)), cfg
	}

	callback := func(h *AuthHandler, state, cookieState string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+state, nil)
		req.AddCookie(&http.Cookie{Name: stateCookieName, Value: cookieState})
		rr := httptest.NewRecorder()
		h.HandleCallback(rr, req)
		return rr
	}

	t.Run("StaffLogsIn", func(t *testing.T) {
		h, cfg := newHandler(t, `{"email":"Porta@LaManada.com","name":"Porta 1"}`)
		rr := callback(h, "s1", "s1")

		if rr.Code != http.StatusTemporaryRedirect {
			t.Fatalf("expected redirect, got %d: %s", rr.Code, rr.Body.String())
		}
		if rr.Header().Get("Location") != cfg.FrontendURL {
			t.Errorf("unexpected redirect %q", rr.Header().Get("Location"))
		}

		var staff models.Staff
		if err := h.db.Where("email = ?", "porta@lamanada.com").First(&staff).Error; err != nil {
			t.Fatalf("staff not saved: %v", err)
		}
		if staff.LastLoginAt == nil {
			t.Error("expected last login to be recorded")
		}

		var session string
		for _, c := range rr.Result().Cookies() {
			if c.Name == CookieName {
				session = c.Value
			}
		}
		staffID, _, err := h.ParseToken(session)
		if err != nil || staffID != staff.ID {
			t.Errorf("session cookie does not identify the staff: %q %v", staffID, err)
		}
	})

	t.Run("NotStaff", func(t *testing.T) {
		h, _ := newHandler(t, `{"email":"someone@example.com"}`)
		if rr := callback(h, "s1", "s1"); rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("StateMismatch", func(t *testing.T) {
		h, _ := newHandler(t, `{"email":"porta@lamanada.com"}`)
		if rr := callback(h, "s1", "other"); rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected a huma status error, got %v", err)
	}
	if se.GetStatus() != want {
		t.Errorf("expected status %d, got %d", want, se.GetStatus())
	}
}
