// Package principal describes who is calling a workflow and what they may do.
package principal

import (
	"context"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type Capability int

const (
	Guest Capability = iota
	Customer
	Collaborator
)

func (c Capability) String() string {
	switch c {
	case Customer:
		return "customer"
	case Collaborator:
		return "collaborator"
	default:
		return "guest"
	}
}

func ParseCapability(s string) (Capability, bool) {
	switch strings.ToLower(s) {
	case "guest":
		return Guest, true
	case "customer":
		return Customer, true
	case "collaborator":
		return Collaborator, true
	}
	return Guest, false
}

// Principal is passed explicitly into every workflow call.
type Principal struct {
	UserID     int64
	Capability Capability
}

var Anonymous = Principal{Capability: Guest}

func (p Principal) AtLeast(c Capability) bool { return p.Capability >= c }

// Owns reports whether the principal may act on data belonging to userID.
// Collaborators may read any user's data.
func (p Principal) Owns(userID int64) bool {
	if p.Capability == Collaborator {
		return true
	}
	return p.Capability == Customer && p.UserID == userID
}

type ctxKey struct{}

func WithContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(ctxKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a bearer token into a Principal. Tokens are HS256 with the
// user id in "sub" and the capability in "role".
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Enabled() bool { return len(v.secret) > 0 }

func (v *Verifier) Verify(token string) (Principal, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Anonymous, errors.Wrap(ErrInvalidToken, "parse")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return Anonymous, errors.Wrap(ErrInvalidToken, "subject")
	}
	uid, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || uid <= 0 {
		return Anonymous, errors.Wrap(ErrInvalidToken, "subject is not a user id")
	}
	role, _ := claims["role"].(string)
	capability, ok := ParseCapability(role)
	if !ok || capability == Guest {
		return Anonymous, errors.Wrap(ErrInvalidToken, "role")
	}
	return Principal{UserID: uid, Capability: capability}, nil
}

// Sign issues a token. Used by tests and local tooling; production tokens come from the auth service.
func (v *Verifier) Sign(p Principal, claims jwt.MapClaims) (string, error) {
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	claims["sub"] = strconv.FormatInt(p.UserID, 10)
	claims["role"] = p.Capability.String()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
