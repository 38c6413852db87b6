package insight

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// insightWire mirrors the backend's insight payload. Confidence is a pointer
// so a missing field can be distinguished from an explicit zero.
type insightWire struct {
	InsightID         string   `json:"insight_id"`
	Type              string   `json:"type"`
	Priority          string   `json:"priority"`
	Content           string   `json:"content"`
	Context           string   `json:"context"`
	Timestamp         string   `json:"timestamp"`
	Confidence        *float64 `json:"confidence_score"`
	AssignedTo        string   `json:"assigned_to"`
	DueDate           string   `json:"due_date"`
	SourceChunkIndex  int      `json:"source_chunk_index"`
	RelatedContentIDs []string `json:"related_content_ids"`
}

type metricsWire struct {
	SessionDurationSeconds float64        `json:"session_duration_seconds"`
	ChunksProcessed        int            `json:"chunks_processed"`
	TotalInsights          int            `json:"total_insights"`
	InsightsByType         map[string]int `json:"insights_by_type"`
	AvgProcessingTimeMs    float64        `json:"avg_processing_time_ms"`
	AvgTranscriptionTimeMs float64        `json:"avg_transcription_time_ms"`
}

// ParseTimestamp parses a backend timestamp leniently. The backend sends
// RFC 3339 but has been observed to drop fractional seconds and timezone
// suffixes; unparseable values map to the zero time rather than an error.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// DecodeInsight decodes a single insight entry. A missing insight_id or
// confidence_score makes this one entry undecodable; callers drop it without
// failing the surrounding batch.
func DecodeInsight(raw json.RawMessage) (MeetingInsight, error) {
	var w insightWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return MeetingInsight{}, fmt.Errorf("failed to parse insight: %w", err)
	}

	if w.InsightID == "" {
		return MeetingInsight{}, fmt.Errorf("insight missing insight_id")
	}
	if w.Confidence == nil {
		return MeetingInsight{}, fmt.Errorf("insight %s missing confidence_score", w.InsightID)
	}

	return MeetingInsight{
		InsightID:         w.InsightID,
		Type:              ParseInsightType(w.Type),
		Priority:          ParsePriority(w.Priority),
		Content:           w.Content,
		Context:           w.Context,
		Timestamp:         ParseTimestamp(w.Timestamp),
		Confidence:        *w.Confidence,
		AssignedTo:        w.AssignedTo,
		DueDate:           w.DueDate,
		SourceChunkIndex:  w.SourceChunkIndex,
		RelatedContentIDs: w.RelatedContentIDs,
	}, nil
}

// DecodeInsights decodes a list of insight entries, skipping malformed ones.
// Order of the surviving entries matches arrival order.
func DecodeInsights(raws []json.RawMessage, logger *logrus.Entry) []MeetingInsight {
	insights := make([]MeetingInsight, 0, len(raws))
	for i, raw := range raws {
		ins, err := DecodeInsight(raw)
		if err != nil {
			logger.WithError(err).WithField("entry_index", i).Warn("Skipping malformed insight entry")
			continue
		}
		insights = append(insights, ins)
	}
	return insights
}

// DecodeMetrics decodes the flat metrics object used by both the periodic
// update and the finalization payload.
func DecodeMetrics(raw json.RawMessage) (SessionMetrics, error) {
	var w metricsWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return SessionMetrics{}, fmt.Errorf("failed to parse metrics: %w", err)
	}

	byType := make(map[InsightType]int, len(w.InsightsByType))
	for k, v := range w.InsightsByType {
		byType[ParseInsightType(k)] = v
	}

	return SessionMetrics{
		SessionDurationSeconds: w.SessionDurationSeconds,
		ChunksProcessed:        w.ChunksProcessed,
		TotalInsights:          w.TotalInsights,
		InsightsByType:         byType,
		AvgProcessingTimeMs:    w.AvgProcessingTimeMs,
		AvgTranscriptionTimeMs: w.AvgTranscriptionTimeMs,
	}, nil
}
