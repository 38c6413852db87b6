package insight

import "time"

// InsightType classifies a meeting insight extracted by the backend.
type InsightType string

const (
	TypeActionItem InsightType = "action_item"
	TypeDecision   InsightType = "decision"
	TypeRisk       InsightType = "risk"
	TypeQuestion   InsightType = "question"
	TypeIdea       InsightType = "idea"
	TypeFollowUp   InsightType = "follow_up"
)

// ParseInsightType maps a wire string to an InsightType. Unknown values pass
// through unchanged so new backend categories never break decoding.
func ParseInsightType(s string) InsightType {
	return InsightType(s)
}

// Known reports whether the type is one of the categories this client
// understands. Unknown types still decode and flow through every channel.
func (t InsightType) Known() bool {
	switch t {
	case TypeActionItem, TypeDecision, TypeRisk, TypeQuestion, TypeIdea, TypeFollowUp:
		return true
	default:
		return false
	}
}

// Priority indicates how urgent an insight is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority maps a wire string to a Priority, defaulting to medium for
// anything unrecognized.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// MeetingInsight is one insight extracted from the live transcript. Immutable
// value object; subscribers may retain copies freely.
type MeetingInsight struct {
	InsightID         string      `json:"insight_id"`
	Type              InsightType `json:"type"`
	Priority          Priority    `json:"priority"`
	Content           string      `json:"content"`
	Context           string      `json:"context"`
	Timestamp         time.Time   `json:"timestamp"`
	Confidence        float64     `json:"confidence_score"`
	AssignedTo        string      `json:"assigned_to,omitempty"`
	DueDate           string      `json:"due_date,omitempty"`
	SourceChunkIndex  int         `json:"source_chunk_index"`
	RelatedContentIDs []string    `json:"related_content_ids,omitempty"`
}

// ExtractionResult is one batch of insights produced for a transcript chunk.
type ExtractionResult struct {
	ChunkIndex       int              `json:"chunk_index"`
	Insights         []MeetingInsight `json:"insights"`
	TotalInsights    int              `json:"total_insights"`
	ProcessingTimeMs float64          `json:"processing_time_ms"`
	Timestamp        time.Time        `json:"timestamp"`
}

// TranscriptChunk is one unit of transcribed speech. Chunk indexes increase
// but are not guaranteed gapless.
type TranscriptChunk struct {
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Speaker    string    `json:"speaker,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SessionMetrics aggregates processing statistics for the session. Produced on
// periodic updates and once more inside the finalization payload.
type SessionMetrics struct {
	SessionDurationSeconds float64             `json:"session_duration_seconds"`
	ChunksProcessed        int                 `json:"chunks_processed"`
	TotalInsights          int                 `json:"total_insights"`
	InsightsByType         map[InsightType]int `json:"insights_by_type"`
	AvgProcessingTimeMs    float64             `json:"avg_processing_time_ms"`
	AvgTranscriptionTimeMs float64             `json:"avg_transcription_time_ms"`
}
