package assist

import (
	"time"
)

// Kind discriminates the three proactive assistance payload shapes.
type Kind string

const (
	KindAutoAnswer    Kind = "auto_answer"
	KindClarification Kind = "clarification_needed"
	KindConflict      Kind = "conflict_detected"
)

// VaguenessType categorizes what a vague statement is missing. The backend
// enumeration is open; unknown values pass through unchanged.
type VaguenessType string

const (
	VaguenessTime       VaguenessType = "time"
	VaguenessAssignment VaguenessType = "assignment"
	VaguenessDetail     VaguenessType = "detail"
	VaguenessScope      VaguenessType = "scope"
)

// ConflictSeverity grades a detected conflict.
type ConflictSeverity string

const (
	SeverityLow    ConflictSeverity = "low"
	SeverityMedium ConflictSeverity = "medium"
	SeverityHigh   ConflictSeverity = "high"
)

// ParseConflictSeverity maps a wire string to a ConflictSeverity, defaulting
// to medium for anything unrecognized.
func ParseConflictSeverity(s string) ConflictSeverity {
	switch ConflictSeverity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return ConflictSeverity(s)
	default:
		return SeverityMedium
	}
}

// AnswerSource is one piece of prior content backing an auto-answer.
type AnswerSource struct {
	ContentID      string  `json:"content_id"`
	Title          string  `json:"title"`
	Snippet        string  `json:"snippet"`
	Date           string  `json:"date"`
	RelevanceScore float64 `json:"relevance_score"`
	MeetingType    string  `json:"meeting_type,omitempty"`
}

// AutoAnswer is the payload for a question the backend answered from prior
// meeting content.
type AutoAnswer struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Sources  []AnswerSource `json:"sources"`
}

// Clarification is the payload for a statement the backend flagged as too
// vague to act on.
type Clarification struct {
	Statement          string        `json:"statement"`
	Vagueness          VaguenessType `json:"vagueness_type"`
	SuggestedQuestions []string      `json:"suggested_questions"`
}

// Conflict is the payload for a statement contradicting prior content.
type Conflict struct {
	CurrentStatement      string           `json:"current_statement"`
	ConflictingContentID  string           `json:"conflicting_content_id"`
	ConflictingTitle      string           `json:"conflicting_title"`
	ConflictingSnippet    string           `json:"conflicting_snippet"`
	ConflictingDate       string           `json:"conflicting_date"`
	Severity              ConflictSeverity `json:"conflict_severity"`
	ResolutionSuggestions []string         `json:"resolution_suggestions"`
}

// Assistance is a tagged union over the three payload shapes. Exactly one of
// AutoAnswer, Clarification, Conflict is non-nil, selected by Kind.
type Assistance struct {
	Kind       Kind      `json:"kind"`
	InsightID  string    `json:"insight_id"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	Timestamp  time.Time `json:"timestamp"`

	AutoAnswer    *AutoAnswer    `json:"auto_answer,omitempty"`
	Clarification *Clarification `json:"clarification,omitempty"`
	Conflict      *Conflict      `json:"conflict,omitempty"`
}
