package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"liveinsights-client/pkg/client"
	"liveinsights-client/pkg/insight"
)

// Store persists session artifacts to a SQLite database. It is an ordinary
// subscriber on the client's channels, so persistence latency never blocks
// the decoder.
type Store struct {
	db     *sql.DB
	logger *logrus.Entry
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id  TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	ended_at    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS transcript_chunks (
	session_id  TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	text        TEXT NOT NULL,
	speaker     TEXT,
	timestamp   TIMESTAMP,
	PRIMARY KEY (session_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS insights (
	insight_id         TEXT NOT NULL,
	session_id         TEXT NOT NULL,
	type               TEXT NOT NULL,
	priority           TEXT NOT NULL,
	content            TEXT NOT NULL,
	context            TEXT,
	confidence         REAL NOT NULL,
	assigned_to        TEXT,
	due_date           TEXT,
	source_chunk_index INTEGER,
	timestamp          TIMESTAMP,
	PRIMARY KEY (session_id, insight_id)
);

CREATE TABLE IF NOT EXISTS assistance (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	insight_id TEXT NOT NULL,
	confidence REAL NOT NULL,
	reasoning  TEXT,
	payload    TEXT NOT NULL,
	timestamp  TIMESTAMP
);
`

// Open opens (or creates) the database and applies the schema.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.WithField("component", "store"),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession records or updates a session row.
func (s *Store) SaveSession(sessionID, projectID string, status string, startedAt time.Time, endedAt *time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, project_id, status, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET status = excluded.status, ended_at = excluded.ended_at
	`, sessionID, projectID, status, startedAt, endedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveTranscriptChunk persists one transcript chunk. Duplicate delivery of a
// chunk index overwrites with identical content.
func (s *Store) SaveTranscriptChunk(sessionID string, chunk insight.TranscriptChunk) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO transcript_chunks (session_id, chunk_index, text, speaker, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, chunk.ChunkIndex, chunk.Text, chunk.Speaker, chunk.Timestamp)
	if err != nil {
		return fmt.Errorf("save transcript chunk: %w", err)
	}
	return nil
}

// SaveInsights persists one extraction batch. Insight IDs are unique within
// a session, so the finalization batch upserts over the periodic ones.
func (s *Store) SaveInsights(sessionID string, result insight.ExtractionResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insights transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO insights
			(insight_id, session_id, type, priority, content, context, confidence,
			 assigned_to, due_date, source_chunk_index, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insight insert: %w", err)
	}
	defer stmt.Close()

	for _, ins := range result.Insights {
		if _, err := stmt.Exec(
			ins.InsightID, sessionID, string(ins.Type), string(ins.Priority),
			ins.Content, ins.Context, ins.Confidence,
			ins.AssignedTo, ins.DueDate, ins.SourceChunkIndex, ins.Timestamp,
		); err != nil {
			return fmt.Errorf("insert insight %s: %w", ins.InsightID, err)
		}
	}

	return tx.Commit()
}

// SaveAssistance persists one proactive assistance batch. The full variant
// payload is kept as JSON alongside the shared columns.
func (s *Store) SaveAssistance(sessionID string, batch []assistanceRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin assistance transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range batch {
		if _, err := tx.Exec(`
			INSERT INTO assistance (id, session_id, kind, insight_id, confidence, reasoning, payload, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), sessionID, rec.kind, rec.insightID, rec.confidence, rec.reasoning, rec.payload, rec.timestamp); err != nil {
			return fmt.Errorf("insert assistance entry: %w", err)
		}
	}

	return tx.Commit()
}

type assistanceRecord struct {
	kind       string
	insightID  string
	confidence float64
	reasoning  string
	payload    string
	timestamp  time.Time
}

// TranscriptForSession returns all persisted chunks, ordered by chunk index.
func (s *Store) TranscriptForSession(sessionID string) ([]insight.TranscriptChunk, error) {
	rows, err := s.db.Query(`
		SELECT chunk_index, text, speaker, timestamp
		FROM transcript_chunks
		WHERE session_id = ?
		ORDER BY chunk_index ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var chunks []insight.TranscriptChunk
	for rows.Next() {
		var c insight.TranscriptChunk
		var speaker sql.NullString
		var ts sql.NullTime
		if err := rows.Scan(&c.ChunkIndex, &c.Text, &speaker, &ts); err != nil {
			return nil, fmt.Errorf("scan transcript chunk: %w", err)
		}
		if speaker.Valid {
			c.Speaker = speaker.String
		}
		if ts.Valid {
			c.Timestamp = ts.Time
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// InsightsForSession returns all persisted insights, ordered by source chunk.
func (s *Store) InsightsForSession(sessionID string) ([]insight.MeetingInsight, error) {
	rows, err := s.db.Query(`
		SELECT insight_id, type, priority, content, context, confidence,
		       assigned_to, due_date, source_chunk_index, timestamp
		FROM insights
		WHERE session_id = ?
		ORDER BY source_chunk_index ASC, insight_id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	var insights []insight.MeetingInsight
	for rows.Next() {
		var ins insight.MeetingInsight
		var typ, priority string
		var assignedTo, dueDate sql.NullString
		var ts sql.NullTime
		if err := rows.Scan(&ins.InsightID, &typ, &priority, &ins.Content, &ins.Context,
			&ins.Confidence, &assignedTo, &dueDate, &ins.SourceChunkIndex, &ts); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		ins.Type = insight.ParseInsightType(typ)
		ins.Priority = insight.ParsePriority(priority)
		if assignedTo.Valid {
			ins.AssignedTo = assignedTo.String
		}
		if dueDate.Valid {
			ins.DueDate = dueDate.String
		}
		if ts.Valid {
			ins.Timestamp = ts.Time
		}
		insights = append(insights, ins)
	}
	return insights, rows.Err()
}

// Attach subscribes to the client's channels and persists everything that
// arrives until the channels close.
func (s *Store) Attach(c *client.Client) error {
	subscriberID := "store-" + uuid.NewString()[:8]

	transcripts, err := c.Transcripts().Subscribe(subscriberID, 256)
	if err != nil {
		return err
	}
	insights, err := c.Insights().Subscribe(subscriberID, 64)
	if err != nil {
		return err
	}
	assistance, err := c.Assistance().Subscribe(subscriberID, 64)
	if err != nil {
		return err
	}
	status, err := c.SessionStatus().Subscribe(subscriberID, 8)
	if err != nil {
		return err
	}

	session := c.Session()
	startedAt := time.Now()

	go func() {
		for transcripts != nil || insights != nil || assistance != nil || status != nil {
			select {
			case chunk, ok := <-transcripts:
				if !ok {
					transcripts = nil
					continue
				}
				if err := s.SaveTranscriptChunk(session.SessionID(), chunk); err != nil {
					s.logger.WithError(err).Warn("Failed to persist transcript chunk")
				}

			case result, ok := <-insights:
				if !ok {
					insights = nil
					continue
				}
				if err := s.SaveInsights(session.SessionID(), result); err != nil {
					s.logger.WithError(err).Warn("Failed to persist insights")
				}

			case batch, ok := <-assistance:
				if !ok {
					assistance = nil
					continue
				}
				records := make([]assistanceRecord, 0, len(batch))
				for _, entry := range batch {
					payload, err := json.Marshal(entry)
					if err != nil {
						continue
					}
					records = append(records, assistanceRecord{
						kind:       string(entry.Kind),
						insightID:  entry.InsightID,
						confidence: entry.Confidence,
						reasoning:  entry.Reasoning,
						payload:    string(payload),
						timestamp:  entry.Timestamp,
					})
				}
				if err := s.SaveAssistance(session.SessionID(), records); err != nil {
					s.logger.WithError(err).Warn("Failed to persist assistance batch")
				}

			case st, ok := <-status:
				if !ok {
					status = nil
					continue
				}
				var endedAt *time.Time
				if st == client.StatusCompleted {
					now := time.Now()
					endedAt = &now
				}
				if err := s.SaveSession(session.SessionID(), session.ProjectID(), string(st), startedAt, endedAt); err != nil {
					s.logger.WithError(err).Warn("Failed to persist session state")
				}
			}
		}
	}()

	return nil
}
