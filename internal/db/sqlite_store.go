package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentorhub/updatebuddy/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS mentees (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL,
    discord_id TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS responses (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    mentee_id   INTEGER NOT NULL REFERENCES mentees(id),
    week_number INTEGER NOT NULL,
    text_response TEXT,
    voice_url   TEXT,
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_responses_mentee ON responses(mentee_id);
`

// Store is the sqlite-backed persistence layer. Every method is a single
// unit of work: it opens, commits or fails, and releases on its own, so
// callers must not assume isolation across separate calls.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

func NewStore(db *sql.DB, log zerolog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &Store{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// DSN builds the sqlite connection string for path.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", path)
}

// InitSchema creates both tables if absent. Safe to call on every start.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func toNullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func scanMentee(row interface{ Scan(...any) error }) (*models.Mentee, error) {
	var m models.Mentee
	var created string
	if err := row.Scan(&m.ID, &m.Name, &m.DiscordID, &created); err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(created)
	return &m, nil
}

// FindOrAddMentee looks up a mentee by discord id and inserts one when
// absent. The check and insert share one transaction, and the insert
// carries ON CONFLICT DO NOTHING, so a duplicate id never violates the
// uniqueness constraint; the returned bool reports whether a row was
// created by this call.
func (s *Store) FindOrAddMentee(ctx context.Context, name, discordID string) (*models.Mentee, bool, error) {
	discordID = strings.TrimSpace(discordID)
	if discordID == "" {
		return nil, false, errors.New("empty discord id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanMentee(tx.QueryRowContext(ctx,
		`SELECT id, name, discord_id, created_at FROM mentees WHERE discord_id = ?`, discordID))
	if err == nil {
		if cerr := tx.Commit(); cerr != nil {
			return nil, false, fmt.Errorf("commit: %w", cerr)
		}
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("lookup mentee: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO mentees (name, discord_id, created_at) VALUES (?, ?, ?)
         ON CONFLICT(discord_id) DO NOTHING`,
		name, discordID, formatTime(s.now()))
	if err != nil {
		return nil, false, fmt.Errorf("insert mentee: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert mentee: %w", err)
	}

	m, err := scanMentee(tx.QueryRowContext(ctx,
		`SELECT id, name, discord_id, created_at FROM mentees WHERE discord_id = ?`, discordID))
	if err != nil {
		return nil, false, fmt.Errorf("reread mentee: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return m, inserted > 0, nil
}

// GetMenteeByDiscordID returns nil when no mentee matches.
func (s *Store) GetMenteeByDiscordID(ctx context.Context, discordID string) (*models.Mentee, error) {
	m, err := scanMentee(s.db.QueryRowContext(ctx,
		`SELECT id, name, discord_id, created_at FROM mentees WHERE discord_id = ?`, discordID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mentee by discord id: %w", err)
	}
	return m, nil
}

// GetMenteeByName returns the first match by insertion order. Names are
// not unique; when several mentees share one, later rows are unreachable
// through this path (known limitation).
func (s *Store) GetMenteeByName(ctx context.Context, name string) (*models.Mentee, error) {
	m, err := scanMentee(s.db.QueryRowContext(ctx,
		`SELECT id, name, discord_id, created_at FROM mentees WHERE name = ? ORDER BY id ASC LIMIT 1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mentee by name: %w", err)
	}
	return m, nil
}

// AddResponse resolves the sender by discord id and appends one response
// for the current ISO week. A nil, nil return means the sender is not a
// known mentee and nothing was inserted.
func (s *Store) AddResponse(ctx context.Context, discordID, text, voiceURL string) (*models.Response, error) {
	mentee, err := s.GetMenteeByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}
	if mentee == nil {
		return nil, nil
	}

	now := s.now()
	_, week := now.ISOWeek()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (mentee_id, week_number, text_response, voice_url, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		mentee.ID, week, toNullString(text), toNullString(voiceURL), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert response: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert response: %w", err)
	}
	return &models.Response{
		ID:         id,
		MenteeID:   mentee.ID,
		WeekNumber: week,
		Text:       text,
		VoiceURL:   voiceURL,
		CreatedAt:  now,
		Mentee:     mentee,
	}, nil
}

const responseJoin = `
SELECT r.id, r.mentee_id, r.week_number, r.text_response, r.voice_url, r.created_at,
       m.id, m.name, m.discord_id, m.created_at
FROM responses r
JOIN mentees m ON m.id = r.mentee_id`

func (s *Store) listResponses(ctx context.Context, where string, arg any) ([]*models.Response, error) {
	rows, err := s.db.QueryContext(ctx,
		responseJoin+" "+where+" ORDER BY r.created_at DESC, r.id DESC", arg)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.log.Error().Err(cerr).Msg("list responses: close rows")
		}
	}()

	out := []*models.Response{}
	for rows.Next() {
		var (
			r                  models.Response
			m                  models.Mentee
			text, voice        sql.NullString
			rCreated, mCreated string
		)
		if err := rows.Scan(&r.ID, &r.MenteeID, &r.WeekNumber, &text, &voice, &rCreated,
			&m.ID, &m.Name, &m.DiscordID, &mCreated); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.Text = text.String
		r.VoiceURL = voice.String
		r.CreatedAt = parseTime(rCreated)
		m.CreatedAt = parseTime(mCreated)
		r.Mentee = &m
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return out, nil
}

// ListResponsesByDiscordID returns the mentee's responses newest first,
// each with the owning mentee attached.
func (s *Store) ListResponsesByDiscordID(ctx context.Context, discordID string) ([]*models.Response, error) {
	return s.listResponses(ctx, "WHERE m.discord_id = ?", discordID)
}

// ListResponsesByName matches by mentee name; an empty slice when no
// mentee matches is not an error.
func (s *Store) ListResponsesByName(ctx context.Context, name string) ([]*models.Response, error) {
	return s.listResponses(ctx, "WHERE m.name = ?", name)
}

// ListAllMentees returns every mentee. Order is unspecified.
func (s *Store) ListAllMentees(ctx context.Context) ([]*models.Mentee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, discord_id, created_at FROM mentees`)
	if err != nil {
		return nil, fmt.Errorf("list mentees: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.log.Error().Err(cerr).Msg("list mentees: close rows")
		}
	}()

	out := []*models.Mentee{}
	for rows.Next() {
		m, err := scanMentee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mentee: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mentees: %w", err)
	}
	return out, nil
}

// ExportAllResponses materializes the full responses/mentees join, newest
// first, for tabular export.
func (s *Store) ExportAllResponses(ctx context.Context) ([]models.ExportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT r.week_number, m.name, m.discord_id, r.text_response, r.voice_url, r.created_at
FROM responses r
JOIN mentees m ON m.id = r.mentee_id
ORDER BY r.created_at DESC, r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("export responses: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.log.Error().Err(cerr).Msg("export responses: close rows")
		}
	}()

	out := []models.ExportRow{}
	for rows.Next() {
		var (
			row         models.ExportRow
			text, voice sql.NullString
			created     string
		)
		if err := rows.Scan(&row.WeekNumber, &row.MenteeName, &row.DiscordID, &text, &voice, &created); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		row.Text = text.String
		row.VoiceURL = voice.String
		row.CreatedAt = parseTime(created)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("export responses: %w", err)
	}
	return out, nil
}

// CountMentees reports the number of mentee rows.
func (s *Store) CountMentees(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mentees`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count mentees: %w", err)
	}
	return n, nil
}

// CountResponses reports the number of response rows.
func (s *Store) CountResponses(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return n, nil
}
