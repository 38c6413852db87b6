package insight

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger.WithField("test", true)
}

func TestDecodeInsight(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		expectErr bool
		check     func(t *testing.T, ins MeetingInsight)
	}{
		{
			name: "valid action item",
			payload: `{
				"insight_id": "ins-1",
				"type": "action_item",
				"priority": "high",
				"content": "Ship the beta by Friday",
				"context": "Discussed during planning",
				"timestamp": "2025-03-14T10:30:00Z",
				"confidence_score": 0.92,
				"assigned_to": "dana",
				"due_date": "2025-03-21",
				"source_chunk_index": 7,
				"related_content_ids": ["doc-1", "doc-2"]
			}`,
			check: func(t *testing.T, ins MeetingInsight) {
				assert.Equal(t, "ins-1", ins.InsightID)
				assert.Equal(t, TypeActionItem, ins.Type)
				assert.Equal(t, PriorityHigh, ins.Priority)
				assert.Equal(t, 0.92, ins.Confidence)
				assert.Equal(t, "dana", ins.AssignedTo)
				assert.Equal(t, 7, ins.SourceChunkIndex)
				assert.Equal(t, []string{"doc-1", "doc-2"}, ins.RelatedContentIDs)
				assert.Equal(t, time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC), ins.Timestamp)
			},
		},
		{
			name:    "unknown type passes through",
			payload: `{"insight_id": "ins-2", "type": "budget_flag", "priority": "low", "confidence_score": 0.5}`,
			check: func(t *testing.T, ins MeetingInsight) {
				assert.Equal(t, InsightType("budget_flag"), ins.Type)
				assert.False(t, ins.Type.Known())
				assert.Equal(t, PriorityLow, ins.Priority)
			},
		},
		{
			name:    "unknown priority defaults to medium",
			payload: `{"insight_id": "ins-3", "type": "decision", "priority": "urgent", "confidence_score": 0.7}`,
			check: func(t *testing.T, ins MeetingInsight) {
				assert.Equal(t, PriorityMedium, ins.Priority)
			},
		},
		{
			name:    "explicit zero confidence is valid",
			payload: `{"insight_id": "ins-4", "type": "risk", "confidence_score": 0}`,
			check: func(t *testing.T, ins MeetingInsight) {
				assert.Equal(t, 0.0, ins.Confidence)
			},
		},
		{
			name:      "missing confidence is a decode error",
			payload:   `{"insight_id": "ins-5", "type": "risk", "priority": "high"}`,
			expectErr: true,
		},
		{
			name:      "missing insight_id is a decode error",
			payload:   `{"type": "risk", "confidence_score": 0.4}`,
			expectErr: true,
		},
		{
			name:      "not an object",
			payload:   `[1, 2, 3]`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ins, err := DecodeInsight(json.RawMessage(tt.payload))
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, ins)
		})
	}
}

func TestDecodeInsightsSkipsMalformedEntries(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"insight_id": "a", "type": "action_item", "confidence_score": 0.9}`),
		json.RawMessage(`{"insight_id": "broken", "type": "decision"}`),
		json.RawMessage(`not json`),
		json.RawMessage(`{"insight_id": "b", "type": "question", "confidence_score": 0.6}`),
	}

	insights := DecodeInsights(raws, testLogger())

	require.Len(t, insights, 2)
	assert.Equal(t, "a", insights[0].InsightID)
	assert.Equal(t, "b", insights[1].InsightID)
}

func TestDecodeMetrics(t *testing.T) {
	raw := json.RawMessage(`{
		"session_duration_seconds": 1830.5,
		"chunks_processed": 42,
		"total_insights": 17,
		"insights_by_type": {"action_item": 9, "decision": 5, "budget_flag": 3},
		"avg_processing_time_ms": 120.4,
		"avg_transcription_time_ms": 310.2
	}`)

	sm, err := DecodeMetrics(raw)
	require.NoError(t, err)

	assert.Equal(t, 1830.5, sm.SessionDurationSeconds)
	assert.Equal(t, 42, sm.ChunksProcessed)
	assert.Equal(t, 17, sm.TotalInsights)
	assert.Equal(t, 9, sm.InsightsByType[TypeActionItem])
	assert.Equal(t, 3, sm.InsightsByType[InsightType("budget_flag")])
	assert.Equal(t, 120.4, sm.AvgProcessingTimeMs)
	assert.Equal(t, 310.2, sm.AvgTranscriptionTimeMs)
}

func TestDecodeMetricsInvalid(t *testing.T) {
	_, err := DecodeMetrics(json.RawMessage(`"not an object"`))
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", "2025-03-14T10:30:00Z", time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)},
		{"rfc3339 fractional", "2025-03-14T10:30:00.250Z", time.Date(2025, 3, 14, 10, 30, 0, 250000000, time.UTC)},
		{"no timezone", "2025-03-14T10:30:00", time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)},
		{"space separator", "2025-03-14 10:30:00", time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)},
		{"empty", "", time.Time{}},
		{"garbage", "yesterday-ish", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, ParseTimestamp(tt.input).Equal(tt.want))
		})
	}
}
