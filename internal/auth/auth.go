// Package auth turns bearer tokens into account ids for socket admission.
//
// Tokens are HS256 JWTs carrying an accountId claim. The hub only validates
// them; Issuer exists so operators and tests can mint development tokens
// with the same secret.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors
var (
	ErrMissingToken   = errors.New("missing bearer token")
	ErrInvalidToken   = errors.New("invalid bearer token")
	ErrMissingAccount = errors.New("token has no account id")
)

// Claims is the token payload.
type Claims struct {
	AccountID string `json:"accountId"`
	jwt.RegisteredClaims
}

// Validator verifies bearer tokens.
type Validator struct {
	secret []byte
	parser *jwt.Parser
}

// NewValidator creates a Validator for tokens signed with secret. A non-empty
// issuer is enforced on every token.
func NewValidator(secret, issuer string) *Validator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Validator{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}
}

// AccountID validates token and returns the account it was issued to.
func (v *Validator) AccountID(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	var claims Claims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.AccountID == "" {
		return "", ErrMissingAccount
	}

	return claims.AccountID, nil
}

// Authenticate extracts the bearer token from r and validates it.
func (v *Validator) Authenticate(r *http.Request) (string, error) {
	return v.AccountID(BearerToken(r))
}

// BearerToken returns the token from the Authorization header, falling back
// to the token query parameter for browser clients that cannot set headers.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

// Issuer mints development tokens.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIssuer creates an Issuer that signs with secret.
func NewIssuer(secret, issuer string) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Sign returns a token for accountID valid for ttl.
func (i *Issuer) Sign(accountID string, ttl time.Duration) (string, error) {
	if accountID == "" {
		return "", ErrMissingAccount
	}
	now := i.now()
	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
