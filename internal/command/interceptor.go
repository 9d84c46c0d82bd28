// Package command intercepts utterances that the assistant can handle
// locally, such as saving a reminder or logging an emergency call, before
// any classification or model dispatch happens.
package command

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/solace/internal/lang"
	"github.com/kalambet/solace/internal/storage"
)

// DefaultEmergencyNumber is logged when an emergency call request carries
// no explicit number.
const DefaultEmergencyNumber = "112"

// NavigatePrefix marks a reply source as a client-side route.
const NavigatePrefix = "command::navigate:"

// SourceText is the source of the single-token echo reply.
const SourceText = "text"

const (
	RouteEmergencyCall  = "/settings/tabs/emergency-call"
	RouteCognitiveGames = "/settings/tabs/cognitive-games"
	RouteReminders      = "/settings/reminders"
	RouteMemoryAid      = "/settings/memory-aid"
)

// Store persists the side effects of commands.
type Store interface {
	SaveEmergencyContact(c storage.EmergencyContact) error
	SaveReminder(r storage.Reminder) error
	SaveMemoryAid(m storage.MemoryAid) error
}

// Reply is a canned response produced by a command.
type Reply struct {
	Text   string
	Source string
}

// Navigate returns the reply source for a client route.
func Navigate(route string) string {
	return NavigatePrefix + route
}

// Input is the utterance a rule inspects.
type Input struct {
	Text      string // trimmed original text
	Lower     string
	Language  lang.Tag
	SessionID string
}

type rule struct {
	name   string
	match  func(in Input) bool
	handle func(in Input) Reply
}

// Interceptor evaluates an ordered rule table; the first matching rule wins.
type Interceptor struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	rules  []rule
}

// NewInterceptor creates an Interceptor that records side effects in store.
// Persistence failures are reported to logger and never alter the reply.
func NewInterceptor(store Store, logger *slog.Logger) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Interceptor{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	i.rules = []rule{
		{"echo", isSingleToken, i.echo},
		{"emergency_call", isEmergencyCall, i.emergencyCall},
		{"list_games", isGamesQuestion, i.listGames},
		{"reminder", isReminder, i.reminder},
		{"memory_aid", isMemoryAid, i.memoryAid},
	}
	return i
}

// Rules returns the rule names in evaluation order.
func (i *Interceptor) Rules() []string {
	names := make([]string, len(i.rules))
	for n, r := range i.rules {
		names[n] = r.name
	}
	return names
}

// Try runs text through the rule table. It returns false when no rule
// matches and the pipeline should continue.
func (i *Interceptor) Try(text string, language lang.Tag, sessionID string) (Reply, bool) {
	in := Input{
		Text:      strings.TrimSpace(text),
		Lower:     strings.ToLower(strings.TrimSpace(text)),
		Language:  language,
		SessionID: sessionID,
	}
	for _, r := range i.rules {
		if !r.match(in) {
			continue
		}
		i.logger.Debug("command matched", "rule", r.name, "session_id", sessionID)
		return r.handle(in), true
	}
	return Reply{}, false
}

var (
	wordOnly      = regexp.MustCompile(`^\w+$`)
	digitRun      = regexp.MustCompile(`\d{3,}`)
	reminderLead  = regexp.MustCompile(`(?i)remind me (to|that)?`)
	memoryPattern = regexp.MustCompile(`(?i)^(.+?) is my (.+)$`)
)

func isSingleToken(in Input) bool {
	return wordOnly.MatchString(in.Lower)
}

func isEmergencyCall(in Input) bool {
	if !strings.Contains(in.Lower, "call") {
		return false
	}
	return strings.Contains(in.Lower, "emergency") || digitRun.MatchString(in.Lower)
}

func isGamesQuestion(in Input) bool {
	return strings.Contains(in.Lower, "what games") || strings.Contains(in.Lower, "available games")
}

func isReminder(in Input) bool {
	return strings.HasPrefix(in.Lower, "remind me") || strings.Contains(in.Lower, "set a reminder")
}

func isMemoryAid(in Input) bool {
	return memoryPattern.MatchString(in.Text)
}

func (i *Interceptor) echo(in Input) Reply {
	return Reply{
		Text:   fmt.Sprintf("ℹ️ You said: “%s”", in.Text),
		Source: SourceText,
	}
}

func (i *Interceptor) emergencyCall(in Input) Reply {
	number := digitRun.FindString(in.Lower)
	if number == "" {
		number = DefaultEmergencyNumber
	}
	i.persist("emergency_contact", func() error {
		return i.store.SaveEmergencyContact(storage.EmergencyContact{
			ID:       uuid.New().String(),
			Number:   number,
			CalledAt: i.now().UTC(),
		})
	})
	return Reply{
		Text:   fmt.Sprintf("📞 Emergency number %s logged.", number),
		Source: Navigate(RouteEmergencyCall),
	}
}

func (i *Interceptor) listGames(Input) Reply {
	return Reply{
		Text:   "🧠 Available games: Memory Match, Word Recall",
		Source: Navigate(RouteCognitiveGames),
	}
}

func (i *Interceptor) reminder(in Input) Reply {
	text := in.Text
	if loc := reminderLead.FindStringIndex(text); loc != nil {
		text = text[:loc[0]] + text[loc[1]:]
	}
	text = strings.TrimSpace(text)
	i.persist("reminder", func() error {
		return i.store.SaveReminder(storage.Reminder{
			ID:        uuid.New().String(),
			Text:      text,
			CreatedAt: i.now().UTC(),
		})
	})
	return Reply{
		Text:   fmt.Sprintf("📝 Reminder saved: “%s”", text),
		Source: Navigate(RouteReminders),
	}
}

func (i *Interceptor) memoryAid(in Input) Reply {
	m := memoryPattern.FindStringSubmatch(in.Text)
	name, desc := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	i.persist("memory_aid", func() error {
		return i.store.SaveMemoryAid(storage.MemoryAid{
			ID:          uuid.New().String(),
			Name:        name,
			Description: desc,
			Language:    string(in.Language),
			CreatedAt:   i.now().UTC(),
		})
	})
	return Reply{
		Text:   fmt.Sprintf("💡 Memory aid saved: %s = %s", name, desc),
		Source: Navigate(RouteMemoryAid),
	}
}

// persist runs a side-effecting write and reports failures without
// propagating them.
func (i *Interceptor) persist(kind string, write func() error) {
	if i.store == nil {
		i.logger.Warn("command side effect dropped: no store configured", "kind", kind)
		return
	}
	if err := write(); err != nil {
		i.logger.Warn("command side effect failed", "kind", kind, "error", err)
	}
}
