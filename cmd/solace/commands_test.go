package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/solace/internal/api"
	"github.com/kalambet/solace/internal/intent"
	"github.com/kalambet/solace/internal/persona"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

// useServer points the CLI commands at ts for the duration of the test.
func (ts *testServer) useServer(t *testing.T) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })
}

var ctx = context.Background()

func TestAskCommand_SendsRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/respond": `{"reply":"Tout va bien.","source":"primary","source_icon":"🧠","session_id":"s-1"}`,
	})
	ts.useServer(t)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask", "--lang", "fr", "--session", "s-1", "--care", "je", "suis", "perdu"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/v1/respond" {
		t.Errorf("request = %s %s, want POST /v1/respond", r.Method, r.Path)
	}

	var got api.RespondRequest
	if err := json.Unmarshal([]byte(r.Body), &got); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	want := api.RespondRequest{
		Text:      "je suis perdu",
		Language:  "fr",
		SessionID: "s-1",
		CareMode:  true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestAskCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "requires") {
		t.Errorf("error = %q, want it to mention 'requires'", err.Error())
	}
}

func TestPrintReply(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	var buf bytes.Buffer
	printReply(&buf, api.RespondResponse{SessionID: "s-9"})
	if buf.Len() != 0 {
		t.Errorf("empty reply should print nothing to the writer, got %q", buf.String())
	}

	r := api.RespondResponse{SessionID: "s-9"}
	r.Reply = "I'm here with you."
	r.Source = "secondary"
	r.SourceIcon = "🧠"
	printReply(&buf, r)

	want := "🧠 I'm here with you.\nsource: secondary  session: s-9\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestClassifyCommand(t *testing.T) {
	defer rootCmd.SetArgs(nil)
	defer rootCmd.SetOut(nil)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"classify", "I feel lost"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got intent.DetectionResult
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	want := intent.DetectionResult{
		Intent:           intent.IntentExpressFeelings,
		Emotion:          intent.EmotionConfused,
		Confidence:       intent.FixedConfidence,
		IsEmpathyTrigger: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("classification mismatch (-want +got):\n%s", diff)
	}
}

func TestInteractionsList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /interactions": `[{"id":"ix-001","created_at":"2025-01-01T00:00:00Z","input":"hello","output":"hi","provider":"primary"}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/interactions?limit=20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var interactions []struct {
		ID       string `json:"id"`
		Provider string `json:"provider"`
	}
	if err := decodeJSON(resp, &interactions); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(interactions) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(interactions))
	}
	if interactions[0].ID != "ix-001" || interactions[0].Provider != "primary" {
		t.Errorf("interaction = %+v, want ix-001 from primary", interactions[0])
	}
}

func TestInteractionsListCommand_Session(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /sessions/s-7/interactions": `[]`,
	})
	ts.useServer(t)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"interactions", "list", "--session", "s-7", "--limit", "5"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if got := ts.requests[0].Path; got != "/sessions/s-7/interactions?limit=5" {
		t.Errorf("path = %q, want /sessions/s-7/interactions?limit=5", got)
	}
}

func TestPersonaSetCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PATCH /persona": `{"personality":"calm","model_preference":"primary","use_dataset_context":true,"dataset_context":""}`,
	})
	ts.useServer(t)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"persona", "set", "personality", "calm"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var sent map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sent); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"personality": "calm"}, sent); diff != "" {
		t.Errorf("patch body mismatch (-want +got):\n%s", diff)
	}
}

func TestPersonaPatch(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "family.md")
	if err := os.WriteFile(notes, []byte("Anna   visits on Sundays.\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	str := func(s string) *string { return &s }
	yes := true

	tests := []struct {
		key, value string
		want       persona.Patch
	}{
		{persona.KeyPersonality, "warm", persona.Patch{Personality: str("warm")}},
		{persona.KeyModelPreference, "openai", persona.Patch{ModelPreference: str("openai")}},
		{persona.KeyUseDatasetContext, "true", persona.Patch{UseDatasetContext: &yes}},
		{persona.KeyDatasetContext, "Bob is a neighbour", persona.Patch{DatasetContext: str("Bob is a neighbour")}},
		{persona.KeyDatasetContext, "@" + notes, persona.Patch{DatasetContext: str("Anna visits on Sundays.")}},
	}
	for _, tt := range tests {
		got, err := personaPatch(tt.key, tt.value)
		if err != nil {
			t.Errorf("personaPatch(%q, %q) error: %v", tt.key, tt.value, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("personaPatch(%q, %q) mismatch (-want +got):\n%s", tt.key, tt.value, diff)
		}
	}
}

func TestPersonaPatch_Errors(t *testing.T) {
	tests := []struct{ key, value string }{
		{"mood", "happy"},
		{persona.KeyUseDatasetContext, "sometimes"},
		{persona.KeyDatasetContext, "@" + filepath.Join(t.TempDir(), "missing.txt")},
	}
	for _, tt := range tests {
		if _, err := personaPatch(tt.key, tt.value); err == nil {
			t.Errorf("personaPatch(%q, %q) expected error", tt.key, tt.value)
		}
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		w.Write([]byte(`{"error":{"message":"text is required","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "text is required") {
		t.Errorf("error = %q, want it to contain the server message", err.Error())
	}
}

func TestDecodeJSON_PlainErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
		w.Write([]byte("bad gateway"))
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = decodeJSON(resp, &struct{}{})
	if err == nil || !strings.Contains(err.Error(), "502: bad gateway") {
		t.Errorf("error = %v, want it to include status and body", err)
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Errorf("clip = %q, want short", got)
	}
	if got := clip("é é é é é é", 5); got != "é é é..." {
		t.Errorf("clip = %q, want rune-safe truncation", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Errorf("shortID = %q, want 01234567", got)
	}
}
