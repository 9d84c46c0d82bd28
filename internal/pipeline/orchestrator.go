package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/solace/internal/command"
	"github.com/kalambet/solace/internal/composer"
	"github.com/kalambet/solace/internal/dispatch"
	"github.com/kalambet/solace/internal/intent"
	"github.com/kalambet/solace/internal/lang"
	"github.com/kalambet/solace/internal/provider"
	"github.com/kalambet/solace/internal/storage"
)

// Source icons shown next to a reply.
const (
	IconModel     = "🤖"
	IconAssistant = "🧠"
)

var emptyInputReplies = map[lang.Tag]string{
	lang.English: "I didn't catch that.",
	lang.French:  "Je n'ai rien compris.",
}

// Commands handles utterances that never reach a provider.
type Commands interface {
	Try(text string, language lang.Tag, sessionID string) (command.Reply, bool)
}

// Dispatcher produces a reply from the provider chain.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) dispatch.Result
}

// LogStore records completed turns.
type LogStore interface {
	SaveInteraction(in storage.Interaction) error
}

// Utterance is one user turn.
type Utterance struct {
	Text      string
	Language  lang.Tag // detected from Text when empty
	SessionID string
}

// Options tune a single Respond call.
type Options struct {
	CareMode          bool
	UseDatasetContext bool
	DatasetContext    string
	Memory            []string
	Personality       string
	ModelPreference   provider.ID

	// Generator overrides the configured general-purpose model for this call.
	Generator provider.Generator
}

// DefaultOptions returns the options used when a caller supplies none.
func DefaultOptions() Options {
	return Options{
		UseDatasetContext: true,
		Personality:       composer.DefaultPersonality,
		ModelPreference:   provider.Primary,
	}
}

// Response is what the caller renders.
type Response struct {
	Reply      string `json:"reply"`
	Source     string `json:"source"`
	SourceIcon string `json:"source_icon"`
}

// Orchestrator answers a user turn: commands first, then classification,
// provider dispatch and logging.
type Orchestrator struct {
	commands   Commands
	dispatcher Dispatcher
	logs       LogStore
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator wires the collaborators. commands and logs may be nil.
func NewOrchestrator(commands Commands, dispatcher Dispatcher, logs LogStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		commands:   commands,
		dispatcher: dispatcher,
		logs:       logs,
		logger:     logger,
		now:        time.Now,
	}
}

// Respond runs one turn:
//  1. Empty input gets a canned reply in the input language
//  2. A matching command answers immediately
//  3. The utterance is classified and the care flag derived
//  4. The provider chain selected by ModelPreference is dispatched
//  5. The turn is logged, even when every provider failed
//
// Respond never returns an error; the worst case is an empty reply.
func (o *Orchestrator) Respond(ctx context.Context, u Utterance, opts Options) Response {
	text := strings.TrimSpace(u.Text)
	language := u.Language
	if language == "" {
		language = lang.Detect(text)
	}

	if text == "" {
		reply, ok := emptyInputReplies[language]
		if !ok {
			reply = emptyInputReplies[lang.English]
		}
		return Response{Reply: reply, Source: string(provider.OpenAI), SourceIcon: IconModel}
	}

	if o.commands != nil {
		if r, ok := o.commands.Try(text, language, u.SessionID); ok {
			return Response{Reply: r.Text, Source: r.Source, SourceIcon: IconAssistant}
		}
	}

	detected := intent.Classify(text)
	// Recorded with the turn; provider order and prompts do not depend on it.
	shouldCare := opts.CareMode || detected.IsEmpathyTrigger

	start := time.Now()
	res := o.dispatcher.Dispatch(ctx, dispatch.Request{
		Text:              text,
		Language:          language,
		Preference:        opts.ModelPreference,
		Personality:       opts.Personality,
		DatasetContext:    opts.DatasetContext,
		UseDatasetContext: opts.UseDatasetContext,
		Generator:         opts.Generator,
	})

	o.record(storage.Interaction{
		ID:         uuid.New().String(),
		CreatedAt:  o.now().UTC(),
		SessionID:  u.SessionID,
		Input:      text,
		Output:     res.Reply,
		Provider:   string(res.Source),
		Language:   string(language),
		Memory:     opts.Memory,
		CareMode:   shouldCare,
		Intent:     detected.Intent,
		Emotion:    detected.Emotion,
		Confidence: detected.Confidence,
	})

	o.logger.Debug("respond complete",
		"session_id", u.SessionID,
		"source", res.Source,
		"attempts", len(res.Outcomes),
		"intent", detected.Intent,
		"emotion", detected.Emotion,
		"care_mode", shouldCare,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Response{Reply: res.Reply, Source: string(res.Source), SourceIcon: Icon(string(res.Source))}
}

// Icon returns the icon for a reply source.
func Icon(source string) string {
	if source == string(provider.OpenAI) {
		return IconModel
	}
	return IconAssistant
}

func (o *Orchestrator) record(in storage.Interaction) {
	if o.logs == nil {
		return
	}
	if err := o.logs.SaveInteraction(in); err != nil {
		o.logger.Warn("saving interaction failed", "session_id", in.SessionID, "error", err)
	}
}
