package intent

import "strings"

// FixedConfidence is reported for every classification. The keyword tables
// are not a statistical model, so there is no score to compute.
const FixedConfidence = 0.8

const (
	EmotionNeutral  = "neutral"
	EmotionSad      = "sad"
	EmotionAnxious  = "anxious"
	EmotionLonely   = "lonely"
	EmotionConfused = "confused"
	EmotionScared   = "scared"
	EmotionHappy    = "happy"
)

const (
	IntentChitChat        = "chit_chat"
	IntentSeekReassurance = "seek_reassurance"
	IntentExpressFeelings = "express_feelings"
	IntentAskQuestion     = "ask_question"
	IntentMemoryCheck     = "memory_check"
)

// DetectionResult is the outcome of classifying a single utterance.
type DetectionResult struct {
	Intent           string  `json:"intent"`
	Emotion          string  `json:"emotion"`
	Confidence       float64 `json:"confidence"`
	IsEmpathyTrigger bool    `json:"is_empathy_trigger"`
}

// category pairs a label with the lower-case keywords that select it.
type category struct {
	label    string
	keywords []string
}

// Table order is significant: the first category with any matching keyword wins.
var emotionTable = []category{
	{EmotionSad, []string{"sad", "down", "blue", "depressed", "crying"}},
	{EmotionAnxious, []string{"anxious", "nervous", "worried", "panic", "fear"}},
	{EmotionLonely, []string{"lonely", "alone", "isolated", "abandoned"}},
	{EmotionConfused, []string{"confused", "don’t understand", "lost", "unclear", "disoriented"}},
	{EmotionScared, []string{"scared", "afraid", "terrified", "fearful"}},
	{EmotionHappy, []string{"happy", "joy", "glad", "excited", "content"}},
}

var intentTable = []category{
	{IntentSeekReassurance, []string{"am i ok", "what’s wrong with me", "do you care", "i feel bad"}},
	{IntentExpressFeelings, []string{"i feel", "i’m", "i’m feeling", "it feels like"}},
	{IntentAskQuestion, []string{"what", "why", "how", "where", "when"}},
	{IntentMemoryCheck, []string{"do you remember", "what happened", "what’s this"}},
}

var empathyEmotions = map[string]bool{
	EmotionSad:      true,
	EmotionLonely:   true,
	EmotionAnxious:  true,
	EmotionConfused: true,
	EmotionScared:   true,
}

// Classify labels text with an emotion and an intent using fixed keyword
// tables. It never fails; unmatched text is neutral chit-chat.
func Classify(text string) DetectionResult {
	lower := normalize(text)

	emotion := firstMatch(emotionTable, lower, EmotionNeutral)
	intent := firstMatch(intentTable, lower, IntentChitChat)

	return DetectionResult{
		Intent:           intent,
		Emotion:          emotion,
		Confidence:       FixedConfidence,
		IsEmpathyTrigger: empathyEmotions[emotion] || intent == IntentSeekReassurance,
	}
}

// Categories returns the emotion and intent labels in evaluation order.
func Categories() (emotions, intents []string) {
	for _, c := range emotionTable {
		emotions = append(emotions, c.label)
	}
	for _, c := range intentTable {
		intents = append(intents, c.label)
	}
	return emotions, intents
}

func firstMatch(table []category, text, fallback string) string {
	for _, c := range table {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				return c.label
			}
		}
	}
	return fallback
}

// normalize lower-cases text and folds ASCII apostrophes to the typographic
// form used in the keyword tables.
func normalize(text string) string {
	return strings.ReplaceAll(strings.ToLower(text), "'", "’")
}
