package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kalambet/solace/internal/lang"
)

func TestHostedReply(t *testing.T) {
	var got hostedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"reply":"  I'm right here.  ","language":"en"}`)
	}))
	defer srv.Close()

	h := NewHosted(Primary, srv.URL, 0)
	reply, err := h.Reply(context.Background(), "emotion: I feel lost", lang.English)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply != "I'm right here." {
		t.Errorf("reply = %q, want trimmed reply", reply)
	}
	if got.Message != "emotion: I feel lost" || got.Lang != "en" {
		t.Errorf("request = %+v", got)
	}
	if h.ID() != Primary {
		t.Errorf("ID = %q, want %q", h.ID(), Primary)
	}
}

func TestHostedReply_MissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	reply, err := NewHosted(Secondary, srv.URL, 0).Reply(context.Background(), "chat: hi", lang.English)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply != "" {
		t.Errorf("reply = %q, want empty", reply)
	}
}

func TestHostedReply_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}},
		{"malformed", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>sleeping</html>`)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			if _, err := NewHosted(Primary, srv.URL, 0).Reply(context.Background(), "chat: hi", lang.English); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHostedReply_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	h := NewHosted(Primary, srv.URL, 50*time.Millisecond)
	if _, err := h.Reply(context.Background(), "chat: hi", lang.English); err == nil {
		t.Error("expected timeout error")
	}
}

func TestParse(t *testing.T) {
	for _, s := range []string{"command", "primary", "secondary", "openai"} {
		if _, err := Parse(s); err != nil {
			t.Errorf("Parse(%q): %v", s, err)
		}
	}
	if _, err := Parse("gemini"); err == nil {
		t.Error("Parse(gemini) succeeded, want error")
	}
}
