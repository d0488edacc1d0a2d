// Package telemetry records decision sessions to sqlite for offline
// analysis. It is diagnostic only: nothing read back from the store
// influences steering.
package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/guidecane/internal/pipeline"
)

// Store is the telemetry database.
type Store struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies all
// pending migrations.
func Open(path string) (*Store, error) {
	s, err := OpenRaw(path)
	if err != nil {
		return nil, err
	}
	if err := s.MigrateUp(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenRaw opens the database without touching its schema. Pragmas are
// passed in the DSN so that every pooled connection gets them.
func OpenRaw(path string) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open telemetry db %s: %w", path, err)
	}
	return &Store{DB: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Session describes one run of the decision side.
type Session struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Protocol string          `json:"protocol"`
	Tuning   json.RawMessage `json:"tuning"`
	Started  time.Time       `json:"started"`
	Ended    *time.Time      `json:"ended,omitempty"`
}

// StartSession creates a session and returns its id. tuning is stored as
// JSON for later comparison between runs.
func (s *Store) StartSession(label, protocol string, tuning any, at time.Time) (string, error) {
	tuningJSON := []byte("{}")
	if tuning != nil {
		b, err := json.Marshal(tuning)
		if err != nil {
			return "", fmt.Errorf("marshal tuning: %w", err)
		}
		tuningJSON = b
	}
	id := uuid.NewString()
	_, err := s.Exec(
		`INSERT INTO sessions (session_id, label, protocol, tuning_json, started_unix_nanos) VALUES (?, ?, ?, ?, ?)`,
		id, label, protocol, string(tuningJSON), at.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session end time.
func (s *Store) EndSession(id string, at time.Time) error {
	res, err := s.Exec(`UPDATE sessions SET ended_unix_nanos = ? WHERE session_id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end session: unknown session %q", id)
	}
	return nil
}

// Sessions lists the most recent sessions first.
func (s *Store) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Query(`SELECT session_id, label, protocol, tuning_json, started_unix_nanos, ended_unix_nanos
		FROM sessions ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			sess    Session
			tuning  string
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&sess.ID, &sess.Label, &sess.Protocol, &tuning, &started, &ended); err != nil {
			return nil, err
		}
		sess.Tuning = json.RawMessage(tuning)
		sess.Started = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			sess.Ended = &t
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DecisionRow is one stored decision.
type DecisionRow struct {
	Seq           uint64        `json:"seq"`
	Decided       time.Time     `json:"decided"`
	Latency       time.Duration `json:"latency_ns"`
	Mode          string        `json:"mode"`
	Command       float64       `json:"command"`
	Confidence    float64       `json:"confidence"`
	Proximity     float64       `json:"proximity"`
	RawGap        float64       `json:"raw_gap"`
	Closest       *float64      `json:"closest_m,omitempty"`
	NavBias       *float64      `json:"nav_bias,omitempty"`
	LeftNearest   *float64      `json:"left_nearest_m,omitempty"`
	CenterNearest *float64      `json:"center_nearest_m,omitempty"`
	RightNearest  *float64      `json:"right_nearest_m,omitempty"`
	LateralBias   float64       `json:"lateral_bias"`
	SamplesKept   int           `json:"samples_kept"`
	SamplesFloor  int           `json:"samples_floor"`
	Rationale     string        `json:"rationale"`
}

func nullable(v float64, ok bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func fromNullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// InsertDecisions stores records in a single transaction.
func (s *Store) InsertDecisions(sessionID string, recs []pipeline.Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO decisions (
			session_id, seq, decided_unix_nanos, latency_us, mode, command, confidence,
			proximity, raw_gap, closest_m, nav_bias, left_nearest_m, center_nearest_m,
			right_nearest_m, lateral_bias, samples_kept, samples_floor, rationale
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		d := r.Decision
		z := d.Zones
		if _, err := stmt.Exec(
			sessionID, int64(r.Seq), r.Decided.UnixNano(), r.Latency.Microseconds(), d.Mode.String(),
			d.Command, d.Confidence, d.Proximity, d.RawGap,
			nullable(d.Closest, d.HasClosest), nullable(d.NavBias, d.HasNavBias),
			nullable(z.Left.Nearest, z.Left.Present()),
			nullable(z.Center.Nearest, z.Center.Present()),
			nullable(z.Right.Nearest, z.Right.Present()),
			z.LateralBias, r.Profile.Kept, r.Profile.Floor, d.Rationale,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert decision seq=%d: %w", r.Seq, err)
		}
	}
	return tx.Commit()
}

// Decisions returns up to limit of the most recent decisions of a session,
// oldest first. limit <= 0 returns all of them.
func (s *Store) Decisions(sessionID string, limit int) ([]DecisionRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.Query(`SELECT seq, decided_unix_nanos, latency_us, mode, command, confidence,
			proximity, raw_gap, closest_m, nav_bias, left_nearest_m, center_nearest_m,
			right_nearest_m, lateral_bias, samples_kept, samples_floor, rationale
		FROM (
			SELECT * FROM decisions WHERE session_id = ?
			ORDER BY decided_unix_nanos DESC, decision_id DESC LIMIT ?
		) ORDER BY decided_unix_nanos ASC, decision_id ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		var (
			row                   DecisionRow
			seq, decided, latency int64
			closest, navBias      sql.NullFloat64
			left, center, right   sql.NullFloat64
		)
		if err := rows.Scan(&seq, &decided, &latency, &row.Mode, &row.Command, &row.Confidence,
			&row.Proximity, &row.RawGap, &closest, &navBias, &left, &center, &right,
			&row.LateralBias, &row.SamplesKept, &row.SamplesFloor, &row.Rationale); err != nil {
			return nil, err
		}
		row.Seq = uint64(seq)
		row.Decided = time.Unix(0, decided).UTC()
		row.Latency = time.Duration(latency) * time.Microsecond
		row.Closest = fromNullable(closest)
		row.NavBias = fromNullable(navBias)
		row.LeftNearest = fromNullable(left)
		row.CenterNearest = fromNullable(center)
		row.RightNearest = fromNullable(right)
		out = append(out, row)
	}
	return out, rows.Err()
}

// LinkEvent is one recorded link transition.
type LinkEvent struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// RecordLinkEvent stores a link transition for a session.
func (s *Store) RecordLinkEvent(sessionID string, at time.Time, kind, detail string) error {
	_, err := s.Exec(`INSERT INTO link_events (session_id, at_unix_nanos, kind, detail) VALUES (?, ?, ?, ?)`,
		sessionID, at.UnixNano(), kind, detail)
	if err != nil {
		return fmt.Errorf("insert link event: %w", err)
	}
	return nil
}

// LinkEvents returns a session's link transitions in order.
func (s *Store) LinkEvents(sessionID string) ([]LinkEvent, error) {
	rows, err := s.Query(`SELECT at_unix_nanos, kind, detail FROM link_events
		WHERE session_id = ? ORDER BY at_unix_nanos, event_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LinkEvent
	for rows.Next() {
		var ev LinkEvent
		var at int64
		if err := rows.Scan(&at, &ev.Kind, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = time.Unix(0, at).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
