package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kalambet/solace/internal/lang"
	"github.com/kalambet/solace/internal/persona"
	"github.com/kalambet/solace/internal/pipeline"
	"github.com/kalambet/solace/internal/provider"
	"github.com/kalambet/solace/internal/storage"
)

// Responder answers a user turn.
type Responder interface {
	Respond(ctx context.Context, u pipeline.Utterance, opts pipeline.Options) pipeline.Response
}

// Deps holds the collaborators shared by the HTTP and MCP surfaces.
type Deps struct {
	Store     *storage.Store
	Persona   *persona.Manager // optional; built-in defaults are used when nil
	Responder Responder
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// RespondRequest is a user turn submitted over HTTP or MCP. Unset fields are
// filled from the saved persona.
type RespondRequest struct {
	Text              string   `json:"text"`
	Language          string   `json:"language,omitempty"`
	SessionID         string   `json:"session_id,omitempty"`
	CareMode          bool     `json:"care_mode,omitempty"`
	UseDatasetContext *bool    `json:"use_dataset_context,omitempty"`
	DatasetContext    *string  `json:"dataset_context,omitempty"`
	Memory            []string `json:"memory,omitempty"`
	Personality       string   `json:"personality,omitempty"`
	ModelPreference   string   `json:"model_preference,omitempty"`
}

// RespondResponse echoes the session id so clients can continue a
// conversation started without one.
type RespondResponse struct {
	pipeline.Response
	SessionID string `json:"session_id"`
}

// resolve validates req and layers it over the persona.
func (req RespondRequest) resolve(p persona.Persona) (pipeline.Utterance, pipeline.Options, error) {
	u := pipeline.Utterance{Text: req.Text, SessionID: req.SessionID}
	if u.SessionID == "" {
		u.SessionID = uuid.New().String()
	}
	if req.Language != "" {
		tag, err := lang.Parse(req.Language)
		if err != nil {
			return pipeline.Utterance{}, pipeline.Options{}, err
		}
		u.Language = tag
	}

	opts := pipeline.Options{
		CareMode:          req.CareMode,
		UseDatasetContext: p.UseDatasetContext,
		DatasetContext:    p.DatasetContext,
		Memory:            req.Memory,
		Personality:       p.Personality,
		ModelPreference:   p.ModelPreference,
	}
	if req.UseDatasetContext != nil {
		opts.UseDatasetContext = *req.UseDatasetContext
	}
	if req.DatasetContext != nil {
		opts.DatasetContext = *req.DatasetContext
	}
	if req.Personality != "" {
		opts.Personality = req.Personality
	}
	if req.ModelPreference != "" {
		id, err := provider.Parse(req.ModelPreference)
		if err != nil || id == provider.Command {
			return pipeline.Utterance{}, pipeline.Options{}, fmt.Errorf("invalid model_preference %q", req.ModelPreference)
		}
		opts.ModelPreference = id
	}
	return u, opts, nil
}

// currentPersona returns the saved persona, or the built-in defaults when no
// manager is configured or it fails.
func currentPersona(deps Deps) persona.Persona {
	d := pipeline.DefaultOptions()
	fallback := persona.Persona{
		Personality:       d.Personality,
		ModelPreference:   d.ModelPreference,
		UseDatasetContext: d.UseDatasetContext,
	}
	if deps.Persona == nil {
		return fallback
	}
	p, err := deps.Persona.Get()
	if err != nil {
		deps.logger().Warn("loading persona failed, using defaults", "error", err)
		return fallback
	}
	return p
}

// respond resolves and runs a turn for either surface.
func respond(ctx context.Context, deps Deps, req RespondRequest) (RespondResponse, error) {
	u, opts, err := req.resolve(currentPersona(deps))
	if err != nil {
		return RespondResponse{}, err
	}
	resp := deps.Responder.Respond(ctx, u, opts)
	return RespondResponse{Response: resp, SessionID: u.SessionID}, nil
}
