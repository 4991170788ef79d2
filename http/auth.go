package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"agriquant/db"
)

var errInvalidToken = errors.New("invalid or expired token")

// TokenIssuer mints and verifies signed bearer tokens. Tokens carry the
// username and expiry, signed with HMAC-SHA256.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds an issuer. TTL defaults to 30 minutes.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue returns a token for the username valid until now+ttl.
func (t *TokenIssuer) Issue(username string, now time.Time) string {
	payload := fmt.Sprintf("%s|%d", username, now.Add(t.ttl).Unix())
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + t.sign(encoded)
}

// Verify checks the signature and expiry and returns the username.
func (t *TokenIssuer) Verify(token string, now time.Time) (string, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", errInvalidToken
	}
	if !hmac.Equal([]byte(t.sign(encoded)), []byte(sig)) {
		return "", errInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", errInvalidToken
	}
	username, expStr, ok := strings.Cut(string(raw), "|")
	if !ok {
		return "", errInvalidToken
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil || now.Unix() >= exp {
		return "", errInvalidToken
	}
	return username, nil
}

func (t *TokenIssuer) sign(payload string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password hashing failed")
		return
	}

	user, err := s.store.CreateUser(req.Username, req.Email, string(hashed), req.FullName, req.Role)
	if errors.Is(err, db.ErrDuplicateUser) {
		writeError(w, http.StatusBadRequest, "username or email already registered")
		return
	}
	if err != nil {
		s.log.Error("register failed", zapError(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByUsername(req.Username)
	if err != nil || !user.IsActive ||
		bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: s.tokens.Issue(user.Username, time.Now()),
		TokenType:   "bearer",
	})
}

// authenticate resolves the bearer token to a user. With auth disabled,
// requests without a token proceed as anonymous.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if s.cfg.AuthRequired {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next(w, r)
			return
		}

		username, err := s.tokens.Verify(token, time.Now())
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		user, err := s.store.GetUserByUsername(username)
		if err != nil || !user.IsActive {
			writeError(w, http.StatusUnauthorized, "unknown or inactive user")
			return
		}

		ctx := contextWithUser(r.Context(), user)
		next(w, r.WithContext(ctx))
	}
}

// requireAuth always demands a valid token, regardless of the service
// auth flag. Used for per-user resources.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		username, err := s.tokens.Verify(token, time.Now())
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		user, err := s.store.GetUserByUsername(username)
		if err != nil || !user.IsActive {
			writeError(w, http.StatusUnauthorized, "unknown or inactive user")
			return
		}
		next(w, r.WithContext(contextWithUser(r.Context(), user)))
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return token
}
