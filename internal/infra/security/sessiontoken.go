package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidSessionToken indicates the token is malformed or its signature does not verify.
	ErrInvalidSessionToken = errors.New("session token: invalid")
	// ErrExpiredSessionToken indicates the token has elapsed its validity window.
	ErrExpiredSessionToken = errors.New("session token: expired")
)

const defaultSessionTokenTTL = 30 * time.Minute

// SessionTokenClaims binds a bearer token to one registry session.
type SessionTokenClaims struct {
	SessionID string `json:"sid"`
	AccountID string `json:"act"`
	jwt.RegisteredClaims
}

// SessionTokenIssuer signs and parses the short-lived HS256 tokens that
// session-scoped endpoints authenticate with.
type SessionTokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionTokenIssuer constructs an issuer for the supplied signing key.
func NewSessionTokenIssuer(key []byte, issuer string, ttl time.Duration) (*SessionTokenIssuer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("session token: signing key is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTokenTTL
	}
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	return &SessionTokenIssuer{
		key:    keyCopy,
		issuer: strings.TrimSpace(issuer),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (i *SessionTokenIssuer) WithClock(clock func() time.Time) *SessionTokenIssuer {
	if clock != nil {
		i.now = clock
	}
	return i
}

// TTL returns the validity window applied to issued tokens.
func (i *SessionTokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token bound to the supplied session.
func (i *SessionTokenIssuer) Issue(sessionID, accountID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("session token: session id is required")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", fmt.Errorf("session token: account id is required")
	}

	now := i.now()
	claims := SessionTokenClaims{
		SessionID: sessionID,
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("session token: sign: %w", err)
	}

	return signed, nil
}

// Parse validates the token signature and expiry and returns its claims.
func (i *SessionTokenIssuer) Parse(token string) (*SessionTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSessionToken
	}

	claims := &SessionTokenClaims{}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		options = append(options, jwt.WithIssuer(i.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.key, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSessionToken
		}
		return nil, ErrInvalidSessionToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidSessionToken
	}
	if strings.TrimSpace(claims.SessionID) == "" || strings.TrimSpace(claims.AccountID) == "" {
		return nil, ErrInvalidSessionToken
	}

	return claims, nil
}
