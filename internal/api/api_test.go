package api

import (
	"context"
	"sync"
	"testing"

	"github.com/kalambet/solace/internal/persona"
	"github.com/kalambet/solace/internal/pipeline"
	"github.com/kalambet/solace/internal/storage"
)

// --- mocks ---

type fakeResponder struct {
	mu    sync.Mutex
	resp  pipeline.Response
	utts  []pipeline.Utterance
	opts  []pipeline.Options
}

func (f *fakeResponder) Respond(_ context.Context, u pipeline.Utterance, opts pipeline.Options) pipeline.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.utts = append(f.utts, u)
	f.opts = append(f.opts, opts)
	return f.resp
}

func (f *fakeResponder) last(t *testing.T) (pipeline.Utterance, pipeline.Options) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.utts) == 0 {
		t.Fatal("responder was not called")
	}
	return f.utts[len(f.utts)-1], f.opts[len(f.opts)-1]
}

// --- helpers ---

var testDefaults = persona.Persona{
	Personality:       "supportive and compassionate",
	ModelPreference:   "primary",
	UseDatasetContext: true,
	DatasetContext:    "Anna visits on Sundays.",
}

func newTestDeps(t *testing.T) (Deps, *fakeResponder) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	responder := &fakeResponder{resp: pipeline.Response{Reply: "I'm here.", Source: "primary", SourceIcon: pipeline.IconAssistant}}
	return Deps{
		Store:     store,
		Persona:   persona.NewManager(store, testDefaults),
		Responder: responder,
	}, responder
}
