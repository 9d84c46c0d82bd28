package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/solace/internal/intent"
	"github.com/kalambet/solace/internal/lang"
	"github.com/kalambet/solace/internal/persona"
	"github.com/kalambet/solace/internal/pipeline"
	"github.com/kalambet/solace/internal/provider"
	"github.com/kalambet/solace/internal/storage"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	deps, _ := newTestDeps(t)
	w := do(t, NewHandler(deps), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRespond_PersonaDefaults(t *testing.T) {
	deps, responder := newTestDeps(t)
	w := do(t, NewHandler(deps), http.MethodPost, "/v1/respond", `{"text":"I feel lost","language":"en"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp RespondResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Reply != "I'm here." || resp.Source != "primary" || resp.SourceIcon != pipeline.IconAssistant {
		t.Errorf("response = %+v", resp)
	}
	if resp.SessionID == "" {
		t.Error("session id not assigned")
	}

	u, opts := responder.last(t)
	if u.Text != "I feel lost" || u.Language != lang.English || u.SessionID != resp.SessionID {
		t.Errorf("utterance = %+v", u)
	}
	want := pipeline.Options{
		UseDatasetContext: true,
		DatasetContext:    "Anna visits on Sundays.",
		Personality:       "supportive and compassionate",
		ModelPreference:   provider.Primary,
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestRespond_RequestOverrides(t *testing.T) {
	deps, responder := newTestDeps(t)
	body := `{"text":"bonjour","language":"fr-FR","session_id":"s1","care_mode":true,
		"use_dataset_context":false,"dataset_context":"","memory":["likes tea"],
		"personality":"playful","model_preference":"openai"}`
	w := do(t, NewHandler(deps), http.MethodPost, "/v1/respond", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	u, opts := responder.last(t)
	if u.Language != lang.French || u.SessionID != "s1" {
		t.Errorf("utterance = %+v", u)
	}
	want := pipeline.Options{
		CareMode:        true,
		Memory:          []string{"likes tea"},
		Personality:     "playful",
		ModelPreference: provider.OpenAI,
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestRespond_Validation(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)
	for _, body := range []string{
		`not json`,
		`{"text":"hi","language":"de"}`,
		`{"text":"hi","model_preference":"command"}`,
		`{"text":"hi","model_preference":"claude"}`,
	} {
		w := do(t, h, http.MethodPost, "/v1/respond", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
		if !strings.Contains(w.Body.String(), "invalid_request_error") {
			t.Errorf("body %s: error envelope = %s", body, w.Body.String())
		}
	}
}

func TestRespond_EmptyTextReachesResponder(t *testing.T) {
	deps, responder := newTestDeps(t)
	w := do(t, NewHandler(deps), http.MethodPost, "/v1/respond", `{"text":""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if u, _ := responder.last(t); u.Text != "" {
		t.Errorf("text = %q", u.Text)
	}
}

func TestClassify(t *testing.T) {
	deps, _ := newTestDeps(t)
	w := do(t, NewHandler(deps), http.MethodPost, "/v1/classify", `{"text":"I am so scared"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got intent.DetectionResult
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(intent.Classify("I am so scared"), got); diff != "" {
		t.Errorf("classification mismatch (-want +got):\n%s", diff)
	}
}

func seedInteractions(t *testing.T, store *storage.Store) {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, rec := range []struct{ id, session, input string }{
		{"i1", "a", "hello"},
		{"i2", "b", "good morning"},
		{"i3", "a", "where am I"},
	} {
		err := store.SaveInteraction(storage.Interaction{
			ID: rec.id, SessionID: rec.session, Input: rec.input, Output: "ok",
			Provider: "primary", Language: "en", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestInteractions(t *testing.T) {
	deps, _ := newTestDeps(t)
	seedInteractions(t, deps.Store)
	h := NewHandler(deps)

	w := do(t, h, http.MethodGet, "/interactions?limit=2", "")
	var list []storage.Interaction
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 2 || list[0].ID != "i3" || list[1].ID != "i2" {
		t.Errorf("list = %+v", list)
	}

	w = do(t, h, http.MethodGet, "/interactions/i2", "")
	var one storage.Interaction
	json.NewDecoder(w.Body).Decode(&one)
	if w.Code != http.StatusOK || one.Input != "good morning" {
		t.Errorf("get: status %d, %+v", w.Code, one)
	}

	w = do(t, h, http.MethodGet, "/interactions/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", w.Code)
	}

	w = do(t, h, http.MethodGet, "/sessions/a/interactions", "")
	var session []storage.Interaction
	json.NewDecoder(w.Body).Decode(&session)
	if len(session) != 2 || session[0].ID != "i1" || session[1].ID != "i3" {
		t.Errorf("session = %+v", session)
	}
}

func TestInteractions_EmptyIsArray(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)
	for _, path := range []string{"/interactions", "/sessions/x/interactions", "/reminders", "/memory-aids", "/emergency-contacts"} {
		w := do(t, h, http.MethodGet, path, "")
		if got := strings.TrimSpace(w.Body.String()); got != "[]" {
			t.Errorf("%s: body = %s, want []", path, got)
		}
	}
}

func TestCommandRecords(t *testing.T) {
	deps, _ := newTestDeps(t)
	now := time.Now().UTC()
	deps.Store.SaveReminder(storage.Reminder{ID: "r1", Text: "take meds", CreatedAt: now})
	deps.Store.SaveMemoryAid(storage.MemoryAid{ID: "m1", Name: "John", Description: "brother", Language: "en", CreatedAt: now})
	deps.Store.SaveEmergencyContact(storage.EmergencyContact{ID: "e1", Number: "112", CalledAt: now})
	h := NewHandler(deps)

	var reminders []storage.Reminder
	json.NewDecoder(do(t, h, http.MethodGet, "/reminders", "").Body).Decode(&reminders)
	if len(reminders) != 1 || reminders[0].Text != "take meds" {
		t.Errorf("reminders = %+v", reminders)
	}

	var aids []storage.MemoryAid
	json.NewDecoder(do(t, h, http.MethodGet, "/memory-aids", "").Body).Decode(&aids)
	if len(aids) != 1 || aids[0].Name != "John" {
		t.Errorf("aids = %+v", aids)
	}

	var contacts []storage.EmergencyContact
	json.NewDecoder(do(t, h, http.MethodGet, "/emergency-contacts", "").Body).Decode(&contacts)
	if len(contacts) != 1 || contacts[0].Number != "112" {
		t.Errorf("contacts = %+v", contacts)
	}
}

func TestPersona(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	var got persona.Persona
	json.NewDecoder(do(t, h, http.MethodGet, "/persona", "").Body).Decode(&got)
	if diff := cmp.Diff(testDefaults, got); diff != "" {
		t.Errorf("persona mismatch (-want +got):\n%s", diff)
	}

	w := do(t, h, http.MethodPatch, "/persona", `{"personality":"gentle","model_preference":"secondary"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	json.NewDecoder(w.Body).Decode(&got)
	if got.Personality != "gentle" || got.ModelPreference != provider.Secondary {
		t.Errorf("patched persona = %+v", got)
	}

	w = do(t, h, http.MethodPatch, "/persona", `{"model_preference":"gpt"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid patch status = %d, want 400", w.Code)
	}
}

func TestPersona_NoManager(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Persona = nil
	h := NewHandler(deps)

	var got persona.Persona
	json.NewDecoder(do(t, h, http.MethodGet, "/persona", "").Body).Decode(&got)
	if got.Personality != "supportive and compassionate" || !got.UseDatasetContext {
		t.Errorf("persona = %+v", got)
	}
	if w := do(t, h, http.MethodPatch, "/persona", `{}`); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("patch status = %d, want 405", w.Code)
	}
}
