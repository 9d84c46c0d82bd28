// Package dispatch walks an ordered chain of reply providers and returns the
// first non-empty reply.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kalambet/solace/internal/composer"
	"github.com/kalambet/solace/internal/lang"
	"github.com/kalambet/solace/internal/provider"
)

// Replier is a hosted endpoint that answers a tagged prompt.
type Replier interface {
	Reply(ctx context.Context, prompt string, language lang.Tag) (string, error)
}

// Translator converts text between languages. Implementations fail soft and
// return the input unchanged.
type Translator interface {
	Translate(ctx context.Context, text string, from, to lang.Tag) string
}

var (
	errNoClient   = errors.New("provider not configured")
	errEmptyReply = errors.New("empty reply")
)

// Order returns the provider chain for a model preference.
func Order(pref provider.ID) []provider.ID {
	switch pref {
	case provider.OpenAI:
		return []provider.ID{provider.OpenAI}
	case provider.Secondary:
		return []provider.ID{provider.Secondary, provider.OpenAI}
	default:
		return []provider.ID{provider.Primary, provider.Secondary, provider.OpenAI}
	}
}

// Request is a single dispatch.
type Request struct {
	Text              string
	Language          lang.Tag
	Preference        provider.ID
	Personality       string
	DatasetContext    string
	UseDatasetContext bool

	// Generator overrides the dispatcher's general-purpose model.
	Generator provider.Generator
}

// Outcome records one provider attempt.
type Outcome struct {
	Provider provider.ID
	Reply    string
	Err      error
}

// Succeeded reports whether the attempt produced a usable reply.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Reply != ""
}

// Result is the outcome of a dispatch. When every provider fails, Reply is
// empty and Source names the last provider attempted.
type Result struct {
	Reply    string
	Source   provider.ID
	Outcomes []Outcome
}

// Exhausted reports whether no provider produced a reply.
func (r Result) Exhausted() bool {
	return r.Reply == ""
}

// Dispatcher tries providers in order, one attempt each.
type Dispatcher struct {
	primary    Replier
	secondary  Replier
	generator  provider.Generator
	translator Translator
	composer   *composer.Composer
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPrimary sets the primary hosted endpoint.
func WithPrimary(r Replier) Option { return func(d *Dispatcher) { d.primary = r } }

// WithSecondary sets the secondary hosted endpoint.
func WithSecondary(r Replier) Option { return func(d *Dispatcher) { d.secondary = r } }

// WithGenerator sets the default general-purpose model.
func WithGenerator(g provider.Generator) Option { return func(d *Dispatcher) { d.generator = g } }

// WithTranslator sets the translation bridge used around the general-purpose model.
func WithTranslator(t Translator) Option { return func(d *Dispatcher) { d.translator = t } }

// WithComposer sets the composer that bounds dataset context.
func WithComposer(c *composer.Composer) Option { return func(d *Dispatcher) { d.composer = c } }

// WithLogger sets the logger for failed attempts.
func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// New creates a Dispatcher. Providers left unset count as failed attempts.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{}
	for _, opt := range opts {
		opt(d)
	}
	if d.composer == nil {
		d.composer = composer.New(0)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Dispatch runs the chain selected by req.Preference and stops at the first
// non-empty reply.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	var res Result
	for _, id := range Order(req.Preference) {
		reply, err := d.attempt(ctx, id, req)
		reply = strings.TrimSpace(reply)
		if err == nil && reply == "" {
			err = errEmptyReply
		}
		res.Source = id
		res.Outcomes = append(res.Outcomes, Outcome{Provider: id, Reply: reply, Err: err})
		if err != nil {
			d.logger.Warn("provider attempt failed", "provider", id, "error", err)
			continue
		}
		res.Reply = reply
		return res
	}
	d.logger.Warn("all providers exhausted", "last", res.Source, "attempts", len(res.Outcomes))
	return res
}

func (d *Dispatcher) attempt(ctx context.Context, id provider.ID, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch id {
	case provider.Primary:
		return d.hosted(ctx, d.primary, req)
	case provider.Secondary:
		return d.hosted(ctx, d.secondary, req)
	case provider.OpenAI:
		return d.general(ctx, req)
	}
	return "", errNoClient
}

func (d *Dispatcher) hosted(ctx context.Context, r Replier, req Request) (string, error) {
	if r == nil {
		return "", errNoClient
	}
	return r.Reply(ctx, composer.BuildPrompt(req.Text, req.Language), req.Language)
}

// general runs the general-purpose model in English, translating French
// input and output around it.
func (d *Dispatcher) general(ctx context.Context, req Request) (string, error) {
	gen := req.Generator
	if gen == nil {
		gen = d.generator
	}
	if gen == nil {
		return "", errNoClient
	}

	prompt := d.composer.Prompt(req.Personality, req.Text, req.DatasetContext, req.UseDatasetContext)

	french := req.Language == lang.French
	if french {
		prompt = d.translate(ctx, prompt, lang.French, lang.English)
	}
	reply, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if french && strings.TrimSpace(reply) != "" {
		reply = d.translate(ctx, reply, lang.English, lang.French)
	}
	return reply, nil
}

func (d *Dispatcher) translate(ctx context.Context, text string, from, to lang.Tag) string {
	if d.translator == nil {
		return text
	}
	return d.translator.Translate(ctx, text, from, to)
}
