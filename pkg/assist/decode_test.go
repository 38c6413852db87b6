package assist

import (
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger.WithField("test", true)
}

const validAutoAnswer = `{
	"type": "auto_answer",
	"insight_id": "ins-1",
	"confidence": 0.88,
	"reasoning": "Answered from the Q3 planning doc",
	"timestamp": "2025-03-14T10:30:00Z",
	"question": "When is the Q3 freeze?",
	"answer": "June 20th",
	"sources": [
		{"content_id": "doc-9", "title": "Q3 Planning", "snippet": "freeze on June 20", "date": "2025-02-01", "relevance_score": 0.95, "meeting_type": "planning"},
		{"content_id": "doc-10", "snippet": "missing title and date"}
	]
}`

const validClarification = `{
	"type": "clarification_needed",
	"insight_id": "ins-2",
	"confidence": 0.71,
	"reasoning": "No owner was named",
	"timestamp": "2025-03-14T10:31:00Z",
	"statement": "Someone should follow up with legal",
	"vagueness_type": "assignment",
	"suggested_questions": ["Who owns the legal follow-up?", "By when?"]
}`

const validConflict = `{
	"type": "conflict_detected",
	"insight_id": "ins-3",
	"confidence": 0.64,
	"reasoning": "Contradicts the March decision",
	"timestamp": "2025-03-14T10:32:00Z",
	"current_statement": "We will self-host the database",
	"conflicting_content_id": "doc-4",
	"conflicting_title": "March infra decision",
	"conflicting_snippet": "agreed to use managed hosting",
	"conflicting_date": "2025-03-01",
	"conflict_severity": "high",
	"resolution_suggestions": ["Revisit the March decision", "Confirm with infra team"]
}`

func TestDecodeAutoAnswer(t *testing.T) {
	a, err := Decode(json.RawMessage(validAutoAnswer))
	require.NoError(t, err)

	assert.Equal(t, KindAutoAnswer, a.Kind)
	assert.Equal(t, "ins-1", a.InsightID)
	assert.Equal(t, 0.88, a.Confidence)
	require.NotNil(t, a.AutoAnswer)
	assert.Nil(t, a.Clarification)
	assert.Nil(t, a.Conflict)

	assert.Equal(t, "When is the Q3 freeze?", a.AutoAnswer.Question)
	assert.Equal(t, "June 20th", a.AutoAnswer.Answer)

	// The second source lacks title, date and relevance and is dropped.
	require.Len(t, a.AutoAnswer.Sources, 1)
	assert.Equal(t, "Q3 Planning", a.AutoAnswer.Sources[0].Title)
	assert.Equal(t, 0.95, a.AutoAnswer.Sources[0].RelevanceScore)
}

func TestDecodeClarification(t *testing.T) {
	a, err := Decode(json.RawMessage(validClarification))
	require.NoError(t, err)

	assert.Equal(t, KindClarification, a.Kind)
	require.NotNil(t, a.Clarification)
	assert.Nil(t, a.AutoAnswer)
	assert.Nil(t, a.Conflict)

	assert.Equal(t, VaguenessAssignment, a.Clarification.Vagueness)
	assert.Len(t, a.Clarification.SuggestedQuestions, 2)
}

func TestDecodeConflict(t *testing.T) {
	a, err := Decode(json.RawMessage(validConflict))
	require.NoError(t, err)

	assert.Equal(t, KindConflict, a.Kind)
	require.NotNil(t, a.Conflict)
	assert.Nil(t, a.AutoAnswer)
	assert.Nil(t, a.Clarification)

	assert.Equal(t, SeverityHigh, a.Conflict.Severity)
	assert.Equal(t, "doc-4", a.Conflict.ConflictingContentID)
	assert.Len(t, a.Conflict.ResolutionSuggestions, 2)
}

func TestDecodeRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{{`},
		{"missing insight_id", `{"type": "auto_answer", "confidence": 0.5, "question": "q", "answer": "a"}`},
		{"missing confidence", `{"type": "auto_answer", "insight_id": "x", "question": "q", "answer": "a"}`},
		{"auto_answer missing answer", `{"type": "auto_answer", "insight_id": "x", "confidence": 0.5, "question": "q"}`},
		{"clarification missing statement", `{"type": "clarification_needed", "insight_id": "x", "confidence": 0.5, "vagueness_type": "time"}`},
		{"clarification missing vagueness", `{"type": "clarification_needed", "insight_id": "x", "confidence": 0.5, "statement": "s"}`},
		{"conflict missing statement", `{"type": "conflict_detected", "insight_id": "x", "confidence": 0.5}`},
		{"unknown kind", `{"type": "celebration", "insight_id": "x", "confidence": 0.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(json.RawMessage(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestDecodeUnknownVaguenessPassesThrough(t *testing.T) {
	payload := `{"type": "clarification_needed", "insight_id": "x", "confidence": 0.5,
		"statement": "s", "vagueness_type": "budget"}`
	a, err := Decode(json.RawMessage(payload))
	require.NoError(t, err)
	assert.Equal(t, VaguenessType("budget"), a.Clarification.Vagueness)
}

func TestDecodeUnknownSeverityDefaultsToMedium(t *testing.T) {
	payload := `{"type": "conflict_detected", "insight_id": "x", "confidence": 0.5,
		"current_statement": "s", "conflict_severity": "catastrophic"}`
	a, err := Decode(json.RawMessage(payload))
	require.NoError(t, err)
	assert.Equal(t, SeverityMedium, a.Conflict.Severity)
}

func TestDecodeBatchKeepsValidEntries(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(validAutoAnswer),
		json.RawMessage(`{"type": "auto_answer", "insight_id": "bad"}`),
		json.RawMessage(validConflict),
	}

	batch := DecodeBatch(raws, testLogger())

	require.Len(t, batch, 2)
	assert.Equal(t, KindAutoAnswer, batch[0].Kind)
	assert.Equal(t, KindConflict, batch[1].Kind)
}

func TestDecodeBatchAllInvalidYieldsEmpty(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"type": "auto_answer"}`),
		json.RawMessage(`garbage`),
	}

	batch := DecodeBatch(raws, testLogger())
	assert.Empty(t, batch)
}
