package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tabsync/tabsync/internal/domain"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUnknownTable       = errors.New("unknown table code")
	ErrTableUnavailable   = errors.New("table not available for ordering")
)

// StaffClaims is the staff JWT payload issued by the auth service.
type StaffClaims struct {
	jwt.RegisteredClaims

	TenantID string      `json:"tenant_id"`
	StaffID  string      `json:"staff_id"`
	Role     domain.Role `json:"role"`
}

// Gatekeeper authenticates upgrade requests and produces the immutable
// Identity a connection carries for its lifetime. Authentication is a
// pure lookup: it never mutates state.
type Gatekeeper struct {
	secret        []byte
	issuer        string
	tables        domain.TableRepository
	lookupTimeout time.Duration
}

func NewGatekeeper(secret, issuer string, tables domain.TableRepository, lookupTimeout time.Duration) *Gatekeeper {
	if lookupTimeout <= 0 {
		lookupTimeout = 5 * time.Second
	}
	return &Gatekeeper{
		secret:        []byte(secret),
		issuer:        issuer,
		tables:        tables,
		lookupTimeout: lookupTimeout,
	}
}

// Authenticate resolves the handshake to an Identity. Staff present a
// bearer JWT; customers present a table_code + session_id pair. Any
// failure tears the connection down: no anonymous connections exist.
func (g *Gatekeeper) Authenticate(r *http.Request) (domain.Identity, error) {
	if token := bearerToken(r); token != "" {
		return g.authenticateStaff(token)
	}

	code := r.URL.Query().Get("table_code")
	if code != "" {
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		return g.authenticateCustomer(r.Context(), code, sessionID)
	}

	return domain.Identity{}, ErrMissingCredentials
}

func (g *Gatekeeper) authenticateStaff(token string) (domain.Identity, error) {
	claims := &StaffClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.secret, nil
	}, jwt.WithIssuer(g.issuer), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrTokenExpired
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !parsed.Valid || claims.TenantID == "" || claims.StaffID == "" || !claims.Role.Valid() {
		return domain.Identity{}, ErrInvalidToken
	}

	sessionID := claims.ID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return domain.NewStaffIdentity(claims.TenantID, claims.StaffID, claims.Role, sessionID), nil
}

func (g *Gatekeeper) authenticateCustomer(ctx context.Context, code, sessionID string) (domain.Identity, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, g.lookupTimeout)
	defer cancel()

	table, err := g.tables.FindByCode(lookupCtx, code)
	if err != nil {
		if errors.Is(err, domain.ErrTableNotFound) {
			return domain.Identity{}, ErrUnknownTable
		}
		return domain.Identity{}, fmt.Errorf("table lookup failed: %w", err)
	}

	if !table.Status.Orderable() {
		return domain.Identity{}, ErrTableUnavailable
	}

	return domain.NewCustomerIdentity(table.TenantID, table.ID, sessionID), nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	// Browsers cannot set headers on WebSocket upgrades
	return r.URL.Query().Get("token")
}
