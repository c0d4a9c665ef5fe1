package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lamanada/tickets-api/internal/config"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	CookieName      = "auth_token"
	stateCookieName = "oauth_state"
	TokenDuration   = 24 * time.Hour
)

var ErrUnauthorized = errors.New("unauthorized")

type AuthHandler struct {
	oauthConfig *oauth2.Config
	db          *gorm.DB
	cfg         *config.Config
	now         func() time.Time
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuthAuthURL,
				TokenURL: cfg.OAuthTokenURL,
			},
		},
		db:  db,
		cfg: cfg,
		now: time.Now,
	}
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		MaxAge:   600,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "Invalid login state", http.StatusBadRequest)
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		logrus.WithError(err).Warn("oauth code exchange failed")
		http.Error(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}

	resp, err := h.oauthConfig.Client(r.Context(), token).Get(h.cfg.OAuthUserInfoURL)
	if err != nil {
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		http.Error(w, "Failed to decode user info", http.StatusInternalServerError)
		return
	}

	if !h.cfg.IsStaffEmail(info.Email) {
		logrus.WithField("email", info.Email).Warn("login refused, not a staff email")
		http.Error(w, "Access denied: this account is not on the staff list.", http.StatusForbidden)
		return
	}

	staff, err := h.upsertStaff(r.Context(), info.Email, info.Name, info.Picture)
	if err != nil {
		logrus.WithError(err).Error("saving staff failed")
		http.Error(w, "Failed to save staff", http.StatusInternalServerError)
		return
	}

	jwtToken, err := h.GenerateToken(staff.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, h.sessionCookie(jwtToken))
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", MaxAge: -1, Path: "/"})
	http.Redirect(w, r, h.cfg.FrontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) upsertStaff(ctx context.Context, email, name, avatar string) (*models.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := h.now()

	var staff models.Staff
	if err := h.db.WithContext(ctx).Where(models.Staff{Email: email}).FirstOrInit(&staff).Error; err != nil {
		return nil, err
	}
	staff.Email = email
	staff.Name = name
	staff.Avatar = avatar
	staff.LastLoginAt = &now

	if err := h.db.WithContext(ctx).Save(&staff).Error; err != nil {
		return nil, err
	}
	return &staff, nil
}

func (h *AuthHandler) GenerateToken(staffID string) (string, error) {
	claims := jwt.MapClaims{
		"staff_id": staffID,
		"exp":      h.now().Add(TokenDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// ParseToken validates a session token and returns its staff id and expiry.
func (h *AuthHandler) ParseToken(tokenString string) (string, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", time.Time{}, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, ErrUnauthorized
	}
	staffID, ok := claims["staff_id"].(string)
	if !ok || staffID == "" {
		return "", time.Time{}, ErrUnauthorized
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", time.Time{}, ErrUnauthorized
	}
	return staffID, exp.Time, nil
}

// AuthInput is embedded by every staff-only operation.
type AuthInput struct {
	Cookie string `header:"Cookie"`
}

// Authorize returns the staff id behind the session cookie in the raw Cookie
// header, or a 401 huma error.
func (h *AuthHandler) Authorize(cookieHeader string) (string, error) {
	if strings.TrimSpace(cookieHeader) == "" {
		return "", huma.Error401Unauthorized("Unauthorized: No token found")
	}
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		return "", huma.Error401Unauthorized("Unauthorized")
	}
	for _, c := range cookies {
		if c.Name != CookieName {
			continue
		}
		staffID, _, err := h.ParseToken(c.Value)
		if err != nil {
			return "", huma.Error401Unauthorized("Unauthorized: Invalid token")
		}
		return staffID, nil
	}
	return "", huma.Error401Unauthorized("Unauthorized: No token found")
}

type MeResponse struct {
	Body struct {
		ID          string     `json:"id"`
		Email       string     `json:"email"`
		Name        string     `json:"name"`
		Avatar      string     `json:"avatar"`
		LastLoginAt *time.Time `json:"last_login_at"`
	}
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *AuthInput) (*MeResponse, error) {
	staffID, err := h.Authorize(input.Cookie)
	if err != nil {
		return nil, err
	}

	var staff models.Staff
	if err := h.db.WithContext(ctx).Where("id = ?", staffID).First(&staff).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error401Unauthorized("Unauthorized: unknown staff")
		}
		return nil, huma.Error500InternalServerError("Failed to load staff")
	}

	res := &MeResponse{}
	res.Body.ID = staff.ID
	res.Body.Email = staff.Email
	res.Body.Name = staff.Name
	res.Body.Avatar = staff.Avatar
	res.Body.LastLoginAt = staff.LastLoginAt
	return res, nil
}

func (h *AuthHandler) sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  h.now().Add(TokenDuration),
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
