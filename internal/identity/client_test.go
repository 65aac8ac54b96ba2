package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"scoutlink/internal/domain"
)

func TestHTTPClientLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer clave" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/users/u1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"u1","display_name":"Uno","avatar_url":"http://a/1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "clave", nil)

	profile, err := client.Lookup(context.Background(), "u1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if profile.DisplayName != "Uno" || profile.AvatarURL != "http://a/1" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := client.Lookup(context.Background(), "fantasma"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestHTTPClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", nil)
	if _, err := client.Lookup(context.Background(), "u1"); err == nil || errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestMockDirectoryDefaults(t *testing.T) {
	mock := &MockDirectory{}
	profile, err := mock.Lookup(context.Background(), "u1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if profile.ID != "u1" || profile.DisplayName != "u1" {
		t.Fatalf("unexpected default profile: %+v", profile)
	}

	mock = &MockDirectory{
		Profiles: map[string]domain.Profile{"u2": {ID: "u2", DisplayName: "Dos"}},
		Err:      ErrUnknownUser,
	}
	if _, err := mock.Lookup(context.Background(), "u1"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	profile, err = mock.Lookup(context.Background(), "u2")
	if err != nil || profile.DisplayName != "Dos" {
		t.Fatalf("expected configured profile, got %+v %v", profile, err)
	}
}
