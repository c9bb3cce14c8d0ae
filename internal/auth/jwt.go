package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/loanrecovery/backend/internal/domain/identity"
)

// clockSkew tolerates small drift between the api replicas that mint and
// verify tokens.
const clockSkew = 30 * time.Second

var errIncompleteClaims = errors.New("incomplete claims")

type JWTManager struct {
	issuer   string
	audience string
	secret   []byte
	parser   *jwt.Parser
}

// Claims binds a token to one user, one session row and the role the user
// held at login.
type Claims struct {
	UserID    string        `json:"uid"`
	SessionID string        `json:"sid"`
	Role      identity.Role `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTManager(issuer, audience, signingKey string) *JWTManager {
	return &JWTManager{
		issuer:   issuer,
		audience: audience,
		secret:   []byte(signingKey),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(clockSkew),
		),
	}
}

func (m *JWTManager) Mint(userID, sessionID string, role identity.Role, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies signature, issuer, audience and expiry, then insists the
// token names a user, a session and a known role.
func (m *JWTManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, errIncompleteClaims
	}
	if _, ok := identity.ParseRole(string(claims.Role)); !ok {
		return nil, errIncompleteClaims
	}
	return claims, nil
}
