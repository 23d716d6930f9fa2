package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier("s3cret")
	valid, err := v.Issue("u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := v.Issue("u1", -time.Hour)
	other, _ := NewVerifier("different").Issue("u1", time.Hour)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte("s3cret"))
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{"valid", valid, "u1", false},
		{"expired", expired, "", true},
		{"wrong secret", other, "", true},
		{"no expiry", noExp, "", true},
		{"no subject", noSub, "", true},
		{"other algorithm", hs512, "", true},
		{"garbage", "not.a.token", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidToken) {
				t.Errorf("error %v does not wrap ErrInvalidToken", err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := BearerToken(r)
			if (err == nil) != tt.ok || got != tt.want {
				t.Errorf("BearerToken() = %q, %v", got, err)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("s3cret")
	token, _ := v.Issue("u1", time.Hour)

	var rejected error
	handler := Middleware(v,
		func(r *http.Request) string { return r.URL.Query().Get("uid") },
		func(w http.ResponseWriter, r *http.Request, err error) {
			rejected = err
			w.WriteHeader(http.StatusUnauthorized)
		},
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, _ := Subject(r.Context()); s != "u1" {
			t.Errorf("subject = %q", s)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		uid     string
		auth    string
		status  int
		wantErr error
	}{
		{"own user", "u1", "Bearer " + token, http.StatusNoContent, nil},
		{"other user", "u2", "Bearer " + token, http.StatusUnauthorized, ErrForbidden},
		{"no token", "u1", "", http.StatusUnauthorized, ErrMissingToken},
		{"bad token", "u1", "Bearer nope", http.StatusUnauthorized, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejected = nil
			r := httptest.NewRequest(http.MethodGet, "/?uid="+tt.uid, nil)
			if tt.auth != "" {
				r.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.wantErr != nil && !errors.Is(rejected, tt.wantErr) {
				t.Errorf("rejected with %v, want %v", rejected, tt.wantErr)
			}
		})
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	called := false
	h := Middleware(NewVerifier(""), func(*http.Request) string { return "u1" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("disabled verifier blocked the request")
	}
}
