package assist

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"liveinsights-client/pkg/insight"
)

// entryWire is the union of all fields across the three assistance shapes.
// The discriminant selects which subset is validated.
type entryWire struct {
	Type       string   `json:"type"`
	InsightID  string   `json:"insight_id"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Timestamp  string   `json:"timestamp"`

	// auto_answer
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Sources  []sourceWire `json:"sources"`

	// clarification_needed
	Statement          string   `json:"statement"`
	VaguenessType      string   `json:"vagueness_type"`
	SuggestedQuestions []string `json:"suggested_questions"`

	// conflict_detected
	CurrentStatement      string   `json:"current_statement"`
	ConflictingContentID  string   `json:"conflicting_content_id"`
	ConflictingTitle      string   `json:"conflicting_title"`
	ConflictingSnippet    string   `json:"conflicting_snippet"`
	ConflictingDate       string   `json:"conflicting_date"`
	ConflictSeverity      string   `json:"conflict_severity"`
	ResolutionSuggestions []string `json:"resolution_suggestions"`
}

type sourceWire struct {
	ContentID      string   `json:"content_id"`
	Title          string   `json:"title"`
	Snippet        string   `json:"snippet"`
	Date           string   `json:"date"`
	RelevanceScore *float64 `json:"relevance_score"`
	MeetingType    string   `json:"meeting_type"`
}

// Decode decodes one proactive assistance entry. Any entry failing its
// variant's required-field validation returns an error; callers drop that
// entry from the batch rather than failing the batch.
func Decode(raw json.RawMessage) (Assistance, error) {
	var w entryWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Assistance{}, fmt.Errorf("failed to parse assistance entry: %w", err)
	}

	if w.InsightID == "" {
		return Assistance{}, fmt.Errorf("assistance entry missing insight_id")
	}
	if w.Confidence == nil {
		return Assistance{}, fmt.Errorf("assistance entry %s missing confidence", w.InsightID)
	}

	a := Assistance{
		Kind:       Kind(w.Type),
		InsightID:  w.InsightID,
		Confidence: *w.Confidence,
		Reasoning:  w.Reasoning,
		Timestamp:  insight.ParseTimestamp(w.Timestamp),
	}

	switch Kind(w.Type) {
	case KindAutoAnswer:
		if w.Question == "" || w.Answer == "" {
			return Assistance{}, fmt.Errorf("auto_answer %s missing question or answer", w.InsightID)
		}
		a.AutoAnswer = &AutoAnswer{
			Question: w.Question,
			Answer:   w.Answer,
			Sources:  decodeSources(w.Sources),
		}

	case KindClarification:
		if w.Statement == "" || w.VaguenessType == "" {
			return Assistance{}, fmt.Errorf("clarification_needed %s missing statement or vagueness_type", w.InsightID)
		}
		a.Clarification = &Clarification{
			Statement:          w.Statement,
			Vagueness:          VaguenessType(w.VaguenessType),
			SuggestedQuestions: w.SuggestedQuestions,
		}

	case KindConflict:
		if w.CurrentStatement == "" {
			return Assistance{}, fmt.Errorf("conflict_detected %s missing current_statement", w.InsightID)
		}
		a.Conflict = &Conflict{
			CurrentStatement:      w.CurrentStatement,
			ConflictingContentID:  w.ConflictingContentID,
			ConflictingTitle:      w.ConflictingTitle,
			ConflictingSnippet:    w.ConflictingSnippet,
			ConflictingDate:       w.ConflictingDate,
			Severity:              ParseConflictSeverity(w.ConflictSeverity),
			ResolutionSuggestions: w.ResolutionSuggestions,
		}

	default:
		return Assistance{}, fmt.Errorf("unknown assistance type %q", w.Type)
	}

	return a, nil
}

// decodeSources keeps sources carrying the required title, date and relevance
// fields and drops the rest.
func decodeSources(wires []sourceWire) []AnswerSource {
	sources := make([]AnswerSource, 0, len(wires))
	for _, s := range wires {
		if s.Title == "" || s.Date == "" || s.RelevanceScore == nil {
			continue
		}
		sources = append(sources, AnswerSource{
			ContentID:      s.ContentID,
			Title:          s.Title,
			Snippet:        s.Snippet,
			Date:           s.Date,
			RelevanceScore: *s.RelevanceScore,
			MeetingType:    s.MeetingType,
		})
	}
	return sources
}

// DecodeBatch decodes a list of assistance entries, dropping invalid ones.
// A batch containing only invalid entries yields an empty slice; the caller
// decides whether an empty batch is worth emitting.
func DecodeBatch(raws []json.RawMessage, logger *logrus.Entry) []Assistance {
	batch := make([]Assistance, 0, len(raws))
	for i, raw := range raws {
		entry, err := Decode(raw)
		if err != nil {
			logger.WithError(err).WithField("entry_index", i).Warn("Dropping invalid assistance entry")
			continue
		}
		batch = append(batch, entry)
	}
	return batch
}
