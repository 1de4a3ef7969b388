package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"inkwell/internal/models"
)

type TokenType string

const (
	TokenAccess  TokenType = "ACCESS"
	TokenRefresh TokenType = "REFRESH"
)

// Claims is the self-contained credential payload. It carries the subject id
// and the session epoch current at issue time; a token whose epoch no longer
// matches the user's is permanently invalid even while unexpired.
type Claims struct {
	UserID       string    `json:"id"`
	SessionEpoch string    `json:"random_str"`
	TokenType    TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService builds a token service for the configured HMAC algorithm
// identifier (HS256, HS384 or HS512).
func NewTokenService(secret, algorithm string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q: only HMAC methods are allowed", algorithm)
	}
	return &TokenService{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

func (s *TokenService) IssueAccess(user *models.User) (string, error) {
	return s.issue(user, TokenAccess, s.accessTTL)
}

func (s *TokenService) IssueRefresh(user *models.User) (string, error) {
	return s.issue(user, TokenRefresh, s.refreshTTL)
}

func (s *TokenService) issue(user *models.User, kind TokenType, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:       user.ID.Hex(),
		SessionEpoch: user.RandomStr,
		TokenType:    kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", kind, err)
	}
	return token, nil
}

// Decode verifies the signature and expiry and returns the claims. It does
// not compare the embedded session epoch against the user's current value;
// that is the caller's job.
func (s *TokenService) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == "" || claims.SessionEpoch == "" || claims.TokenType == "" {
		return nil, fmt.Errorf("malformed token payload")
	}

	return claims, nil
}
