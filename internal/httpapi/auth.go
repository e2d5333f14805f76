package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = 12 * time.Hour

var errAuthDisabled = errors.New("token signing key not configured")

type authContextKey struct{}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Worker    models.Worker `json:"worker"`
}

// tokenIssuer signs and verifies HS256 worker tokens. The subject carries
// the worker id.
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newTokenIssuer(secret string, ttl time.Duration) tokenIssuer {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return tokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t tokenIssuer) issue(worker models.Worker) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, errAuthDisabled
	}
	now := t.now()
	expires := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(worker.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (t tokenIssuer) parse(raw string) (int64, error) {
	if len(t.secret) == 0 {
		return 0, store.ErrUnauthenticated
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return 0, store.ErrUnauthenticated
	}
	workerID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || workerID <= 0 {
		return 0, store.ErrUnauthenticated
	}
	return workerID, nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	worker, err := h.workers.GetWorkerByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrWorkerNotFound) {
		writeError(w, requestID(r), http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(worker.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, requestID(r), http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	token, expires, err := h.tokens.issue(worker)
	if errors.Is(err, errAuthDisabled) {
		writeError(w, requestID(r), http.StatusServiceUnavailable, "auth_disabled", "worker authentication is not configured")
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires.UTC(), Worker: worker})
}

// authenticate resolves the bearer token to a worker and stores it in the
// request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, requestID(r), http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}
		workerID, err := h.tokens.parse(token)
		if err != nil {
			writeError(w, requestID(r), http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		worker, err := h.workers.GetWorker(r.Context(), workerID)
		if errors.Is(err, store.ErrWorkerNotFound) {
			writeError(w, requestID(r), http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, worker)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		worker, ok := workerFromContext(r.Context())
		if !ok {
			writeError(w, requestID(r), http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}
		if !worker.IsAdmin {
			writeError(w, requestID(r), http.StatusForbidden, "access_denied", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func workerFromContext(ctx context.Context) (models.Worker, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return models.Worker{}, false
	}
	worker, ok := value.(models.Worker)
	return worker, ok
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
