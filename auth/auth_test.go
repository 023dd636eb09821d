package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lirancohen/vitals/action"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims *Claims, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name       string
		scopes     []string
		actionType action.Type
		wantErr    bool
	}{
		{
			name:       "declare with declare scope",
			scopes:     []string{ScopeDeclare},
			actionType: action.TypeDeclare,
		},
		{
			name:       "create covered by declare scope",
			scopes:     []string{ScopeDeclare},
			actionType: action.TypeCreate,
		},
		{
			name:       "register without register scope",
			scopes:     []string{ScopeDeclare, ScopeValidate},
			actionType: action.TypeRegister,
			wantErr:    true,
		},
		{
			name:       "reject requires validate scope",
			scopes:     []string{ScopeValidate},
			actionType: action.TypeReject,
		},
		{
			name:       "unassign requires assign scope",
			scopes:     []string{ScopeAssign},
			actionType: action.TypeUnassign,
		},
		{
			name:       "correction actions share the correct scope",
			scopes:     []string{ScopeCorrect},
			actionType: action.TypeApproveCorrection,
		},
		{
			name:       "empty scope set",
			scopes:     nil,
			actionType: action.TypeDeclare,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &Claims{Scopes: tt.scopes}
			err := Authorize(claims, tt.actionType)
			if tt.wantErr {
				if !errors.Is(err, ErrForbidden) {
					t.Errorf("Authorize() error = %v, want ErrForbidden", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Authorize() error = %v", err)
			}
		})
	}
}

func TestScopeFor_UnknownType(t *testing.T) {
	if _, err := ScopeFor(action.Type("TELEPORT")); err == nil {
		t.Error("ScopeFor() error = nil, want error for unknown type")
	}
}

func TestParseToken(t *testing.T) {
	valid := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: []string{ScopeDeclare, ScopeRegister},
	}

	t.Run("valid token round-trips claims", func(t *testing.T) {
		claims, err := ParseToken(signToken(t, valid, testSecret), testSecret)
		if err != nil {
			t.Fatalf("ParseToken() error = %v", err)
		}
		if claims.Subject != "user-1" {
			t.Errorf("Subject = %q, want user-1", claims.Subject)
		}
		if len(claims.Scopes) != 2 || claims.Scopes[0] != ScopeDeclare {
			t.Errorf("Scopes = %v, want [record.declare record.register]", claims.Scopes)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := ParseToken(signToken(t, valid, []byte("other-secret")), testSecret)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("ParseToken() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		_, err := ParseToken(signToken(t, expired, testSecret), testSecret)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("ParseToken() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		anonymous := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		_, err := ParseToken(signToken(t, anonymous, testSecret), testSecret)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("ParseToken() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := ParseToken("not.a.token", testSecret)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("ParseToken() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, valid)
		unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		if _, err := ParseToken(unsigned, testSecret); !errors.Is(err, ErrForbidden) {
			t.Errorf("ParseToken() error = %v, want ErrForbidden", err)
		}
	})
}
