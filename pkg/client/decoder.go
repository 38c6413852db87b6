package client

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"liveinsights-client/pkg/assist"
	"liveinsights-client/pkg/insight"
	"liveinsights-client/pkg/metrics"
)

// Inbound message discriminants.
const (
	msgSessionInitialized = "session_initialized"
	msgInsightsExtracted  = "insights_extracted"
	msgTranscriptChunk    = "transcript_chunk"
	msgMetricsUpdate      = "metrics_update"
	msgSessionFinalized   = "session_finalized"
	msgError              = "error"
)

type envelope struct {
	Type string `json:"type"`
}

type sessionInitializedMsg struct {
	SessionID string `json:"session_id"`
	ProjectID string `json:"project_id"`
}

// insightsExtractedMsg keeps per-insight and per-assistance payloads as raw
// JSON so one malformed entry can be skipped without failing the batch.
type insightsExtractedMsg struct {
	ChunkIndex          int               `json:"chunk_index"`
	Insights            []json.RawMessage `json:"insights"`
	TotalInsights       int               `json:"total_insights"`
	ProcessingTimeMs    float64           `json:"processing_time_ms"`
	ProactiveAssistance []json.RawMessage `json:"proactive_assistance"`
	Timestamp           string            `json:"timestamp"`
}

type transcriptChunkMsg struct {
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	Speaker    string `json:"speaker"`
	Timestamp  string `json:"timestamp"`
}

type metricsUpdateMsg struct {
	Metrics json.RawMessage `json:"metrics"`
}

// sessionFinalizedMsg carries the final insight set twice: grouped by type
// (full payloads, not counts) and as a flat list, alongside a flat metrics
// object shaped like the periodic update. Both representations converge on
// the same typed models used everywhere else.
type sessionFinalizedMsg struct {
	SessionID string `json:"session_id"`
	Insights  struct {
		InsightsByType map[string][]json.RawMessage `json:"insights_by_type"`
		Insights       []json.RawMessage            `json:"insights"`
	} `json:"insights"`
	Metrics             json.RawMessage   `json:"metrics"`
	ProactiveAssistance []json.RawMessage `json:"proactive_assistance"`
	Timestamp           string            `json:"timestamp"`
}

type errorMsg struct {
	Message string `json:"message"`
}

// handleFrame parses one raw frame and dispatches on its type discriminant.
// A frame that fails the top-level parse or lacks a discriminant is reported
// on the error channel and dropped; it never terminates the stream. Unknown
// discriminants are dropped silently so backend protocol additions do not
// surface as errors.
func (c *Client) handleFrame(frame []byte) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.WithError(err).Warn("Dropping unparseable frame")
		metrics.RecordDecodeError("envelope")
		c.errs.Publish(ClientError{Stage: StageEnvelope, Message: "unparseable frame: " + err.Error()})
		return
	}
	if env.Type == "" {
		c.logger.Warn("Dropping frame without type discriminant")
		metrics.RecordDecodeError("envelope")
		c.errs.Publish(ClientError{Stage: StageEnvelope, Message: "frame has no type discriminant"})
		return
	}

	metrics.RecordFrame(env.Type)

	switch env.Type {
	case msgSessionInitialized:
		c.handleSessionInitialized(frame)
	case msgInsightsExtracted:
		c.handleInsightsExtracted(frame)
	case msgTranscriptChunk:
		c.handleTranscriptChunk(frame)
	case msgMetricsUpdate:
		c.handleMetricsUpdate(frame)
	case msgSessionFinalized:
		c.handleSessionFinalized(frame)
	case msgError:
		c.handleError(frame)
	default:
		metrics.RecordUnknownFrame()
		c.logger.WithField("type", env.Type).Debug("Ignoring unknown message type")
	}
}

func (c *Client) handleSessionInitialized(frame []byte) {
	var msg sessionInitializedMsg
	if err := json.Unmarshal(frame, &msg); err != nil || msg.SessionID == "" {
		c.logger.WithError(err).Warn("Dropping malformed session_initialized frame")
		metrics.RecordDecodeError("session")
		c.errs.Publish(ClientError{Stage: StageEnvelope, Message: "malformed session_initialized frame"})
		return
	}

	changed := c.session.Initialize(msg.SessionID, msg.ProjectID)
	if !changed {
		c.logger.WithField("session_id", msg.SessionID).Debug("Duplicate session initialization accepted")
	} else {
		c.logger.WithField("session_id", msg.SessionID).Info("Session initialized")
	}

	c.announceConnection(true)
	c.sessionStatus.Publish(StatusInitialized)
}

func (c *Client) handleInsightsExtracted(frame []byte) {
	var msg insightsExtractedMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.logger.WithError(err).Warn("Dropping malformed insights_extracted frame")
		metrics.RecordDecodeError("insights")
		c.errs.Publish(ClientError{Stage: StageEnvelope, Message: "malformed insights_extracted frame"})
		return
	}

	decoded := insight.DecodeInsights(msg.Insights, c.logger)
	for i := 0; i < len(msg.Insights)-len(decoded); i++ {
		metrics.RecordInsightSkipped()
	}
	for _, ins := range decoded {
		metrics.RecordInsight(string(ins.Type))
	}

	result := insight.ExtractionResult{
		ChunkIndex:       msg.ChunkIndex,
		Insights:         decoded,
		TotalInsights:    msg.TotalInsights,
		ProcessingTimeMs: msg.ProcessingTimeMs,
		Timestamp:        insight.ParseTimestamp(msg.Timestamp),
	}
	c.insights.Publish(result)

	c.emitAssistanceBatch(msg.ProactiveAssistance)
}

// emitAssistanceBatch decodes assistance entries and emits the surviving
// entries as one batch. A batch with no valid entries emits nothing.
func (c *Client) emitAssistanceBatch(raws []json.RawMessage) {
	if len(raws) == 0 {
		return
	}

	batch := assist.DecodeBatch(raws, c.logger)
	for i := 0; i < len(raws)-len(batch); i++ {
		metrics.RecordAssistanceDropped()
	}
	for _, entry := range batch {
		metrics.RecordAssistance(string(entry.Kind))
	}

	if len(batch) == 0 {
		return
	}
	c.assistance.Publish(batch)
}

func (c *Client) handleTranscriptChunk(frame []byte) {
	var msg transcriptChunkMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.logger.WithError(err).Warn("Dropping malformed transcript_chunk frame")
		metrics.RecordDecodeError("transcript")
		c.errs.Publish(ClientError{Stage: StageEnvelope, Message: "malformed transcript_chunk frame"})
		return
	}

	metrics.RecordTranscriptChunk()
	c.transcripts.Publish(insight.TranscriptChunk{
		ChunkIndex: msg.ChunkIndex,
		Text:       msg.Text,
		Speaker:    msg.Speaker,
		Timestamp:  insight.ParseTimestamp(msg.Timestamp),
	})
}

func (c *Client) handleMetricsUpdate(frame []byte) {
	var msg metricsUpdateMsg
	if err := json.Unmarshal(frame, &msg); err != nil || msg.Metrics == nil {
		c.logger.WithError(err).Warn("Dropping malformed metrics_update frame")
		metrics.RecordDecodeError("metrics")
		c.errs.Publish(ClientError{Stage: StageEnvelope, Message: "malformed metrics_update frame"})
		return
	}

	sm, err := insight.DecodeMetrics(msg.Metrics)
	if err != nil {
		c.logger.WithError(err).Warn("Dropping undecodable metrics payload")
		metrics.RecordDecodeError("metrics")
		return
	}

	c.sessionMetrics.Publish(sm)
}

// handleSessionFinalized reconciles the finalization payload's nested insight
// set and metrics into the same shapes used by the periodic messages, emits
// both, then transitions the session to completed.
func (c *Client) handleSessionFinalized(frame []byte) {
	var msg sessionFinalizedMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.logger.WithError(err).Warn("Dropping malformed session_finalized frame")
		metrics.RecordDecodeError("finalization")
		c.errs.Publish(ClientError{Stage: StageEnvelope, Message: "malformed session_finalized frame"})
		return
	}

	// The flat list is authoritative; the grouped-by-type mapping backs it
	// up when the flat list is absent.
	flat := msg.Insights.Insights
	if len(flat) == 0 && len(msg.Insights.InsightsByType) > 0 {
		for _, group := range msg.Insights.InsightsByType {
			flat = append(flat, group...)
		}
	}
	finalInsights := insight.DecodeInsights(flat, c.logger)

	var sm insight.SessionMetrics
	haveMetrics := false
	if msg.Metrics != nil {
		decoded, err := insight.DecodeMetrics(msg.Metrics)
		if err != nil {
			c.logger.WithError(err).Warn("Undecodable metrics in session_finalized")
			metrics.RecordDecodeError("finalization")
		} else {
			sm = decoded
			haveMetrics = true
		}
	}

	if haveMetrics && sm.TotalInsights != len(finalInsights) {
		c.logger.WithFields(logrus.Fields{
			"metrics_total": sm.TotalInsights,
			"decoded_total": len(finalInsights),
		}).Debug("Finalization insight count differs between metrics and flat list")
	}

	total := len(finalInsights)
	if haveMetrics && sm.TotalInsights > 0 {
		total = sm.TotalInsights
	}

	result := insight.ExtractionResult{
		ChunkIndex:       finalChunkIndex(haveMetrics, sm),
		Insights:         finalInsights,
		TotalInsights:    total,
		ProcessingTimeMs: sm.AvgProcessingTimeMs,
		Timestamp:        insight.ParseTimestamp(msg.Timestamp),
	}
	c.insights.Publish(result)

	if haveMetrics {
		c.sessionMetrics.Publish(sm)
	}

	c.emitAssistanceBatch(msg.ProactiveAssistance)

	if c.session.Complete(msg.SessionID) {
		c.logger.WithField("session_id", c.session.SessionID()).Info("Session finalized")
		c.sessionStatus.Publish(StatusCompleted)
	}
}

// finalChunkIndex reports the highest chunk the final batch covers.
func finalChunkIndex(haveMetrics bool, sm insight.SessionMetrics) int {
	if haveMetrics && sm.ChunksProcessed > 0 {
		return sm.ChunksProcessed - 1
	}
	return 0
}

func (c *Client) handleError(frame []byte) {
	var msg errorMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.logger.WithError(err).Warn("Dropping malformed error frame")
		metrics.RecordDecodeError("error")
		return
	}

	c.logger.WithField("message", msg.Message).Warn("Backend reported an error")
	c.errs.Publish(ClientError{Stage: StageProtocol, Message: msg.Message})
}
