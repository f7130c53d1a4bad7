package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssuer_SignAndValidate(t *testing.T) {
	issuer := NewIssuer("test-secret", "cognitive-hub")
	token, err := issuer.Sign("robot1", time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	v := NewValidator("test-secret", "cognitive-hub")
	accountID, err := v.AccountID(token)
	if err != nil {
		t.Fatalf("AccountID failed: %v", err)
	}
	if accountID != "robot1" {
		t.Errorf("AccountID() = %q, want %q", accountID, "robot1")
	}
}

func TestValidator_Rejects(t *testing.T) {
	good := NewIssuer("test-secret", "cognitive-hub")
	expired := NewIssuer("test-secret", "cognitive-hub")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	otherKey := NewIssuer("other-secret", "cognitive-hub")
	otherIssuer := NewIssuer("test-secret", "someone-else")

	mint := func(i *Issuer) string {
		t.Helper()
		tok, err := i.Sign("robot1", time.Hour)
		if err != nil {
			t.Fatalf("Sign failed: %v", err)
		}
		return tok
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", wantErr: ErrInvalidToken},
		{name: "wrong key", token: mint(otherKey), wantErr: ErrInvalidToken},
		{name: "wrong issuer", token: mint(otherIssuer), wantErr: ErrInvalidToken},
		{name: "expired", token: mint(expired), wantErr: ErrInvalidToken},
	}

	v := NewValidator("test-secret", "cognitive-hub")
	if _, err := v.AccountID(mint(good)); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.AccountID(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AccountID() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIssuer_RequiresAccount(t *testing.T) {
	if _, err := NewIssuer("s", "i").Sign("", time.Minute); !errors.Is(err, ErrMissingAccount) {
		t.Errorf("Sign(\"\") error = %v, want ErrMissingAccount", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		url    string
		want   string
	}{
		{name: "header", header: "Bearer abc.def", url: "/socket-device/", want: "abc.def"},
		{name: "query fallback", url: "/socket-device/?token=xyz", want: "xyz"},
		{name: "wrong scheme", header: "Basic Zm9v", url: "/socket-device/?token=xyz", want: ""},
		{name: "none", url: "/socket-device/", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := BearerToken(r); got != tt.want {
				t.Errorf("BearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
