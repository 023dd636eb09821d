// Package auth provides bearer-token parsing and scope-based
// authorization for record actions.
//
// Token issuance is external; this package only verifies tokens and
// checks that the caller's scope set covers the scope an action type
// requires. Authorization runs before any validation or persistence work.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lirancohen/vitals/action"
)

// ErrForbidden indicates the caller's scopes do not include the scope
// required for the action. Fatal for the request: no retry succeeds
// without new credentials.
var ErrForbidden = errors.New("forbidden")

// Claims are the JWT claims Vitals expects on a bearer token.
type Claims struct {
	jwt.RegisteredClaims

	// Scopes is the caller's granted scope set.
	Scopes []string `json:"scope"`
}

// Scopes required per action type.
const (
	ScopeDeclare  = "record.declare"
	ScopeValidate = "record.validate"
	ScopeRegister = "record.register"
	ScopeArchive  = "record.archive"
	ScopeAssign   = "record.assign"
	ScopeCorrect  = "record.correct"
)

// scopeByType maps every action type to its required scope. The action
// vocabulary is closed, so an unmapped type is a programming error.
var scopeByType = map[action.Type]string{
	action.TypeCreate:            ScopeDeclare,
	action.TypeDeclare:           ScopeDeclare,
	action.TypeValidate:          ScopeValidate,
	action.TypeRegister:          ScopeRegister,
	action.TypeReject:            ScopeValidate,
	action.TypeArchive:           ScopeArchive,
	action.TypeAssign:            ScopeAssign,
	action.TypeUnassign:          ScopeAssign,
	action.TypeRequestCorrection: ScopeCorrect,
	action.TypeApproveCorrection: ScopeCorrect,
	action.TypeRejectCorrection:  ScopeCorrect,
}

// ScopeFor returns the scope required to submit the given action type.
func ScopeFor(t action.Type) (string, error) {
	scope, ok := scopeByType[t]
	if !ok {
		return "", fmt.Errorf("no scope defined for action type %q", t)
	}
	return scope, nil
}

// Authorize checks that the claims' scope set includes the scope required
// for the action type. Returns an error wrapping ErrForbidden when it
// does not.
func Authorize(claims *Claims, t action.Type) error {
	scope, err := ScopeFor(t)
	if err != nil {
		return err
	}
	for _, s := range claims.Scopes {
		if s == scope {
			return nil
		}
	}
	return fmt.Errorf("%w: missing scope %q for action %s", ErrForbidden, scope, t)
}

// ParseToken verifies a bearer token with the given HMAC secret and
// returns its claims. Returns an error wrapping ErrForbidden for any
// invalid, expired, or malformed token.
func ParseToken(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: token validation failed: %v", ErrForbidden, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrForbidden)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token subject is required", ErrForbidden)
	}
	return claims, nil
}
