package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mentorhub/updatebuddy/internal/models"
)

// MenteeStore abstracts the persistence operations the importer needs.
type MenteeStore interface {
	FindOrAddMentee(ctx context.Context, name, discordID string) (*models.Mentee, bool, error)
}

// ImportSummary reports the outcome of one roster load.
type ImportSummary struct {
	Total   int
	Added   int
	Skipped int
	Failed  int
	// FirstErr keeps the first per-row failure for the admin reply.
	FirstErr error
}

func (s *ImportSummary) String() string {
	msg := fmt.Sprintf("Finished loading mentees. Added %d, skipped %d (already existed).", s.Added, s.Skipped)
	if s.Failed > 0 {
		msg += fmt.Sprintf(" %d row(s) failed; first error: %v", s.Failed, s.FirstErr)
	}
	return msg
}

// RosterImporter loads mentees from a CSV with name and discord_id
// columns, deduplicating against existing rows by discord id.
type RosterImporter struct {
	store MenteeStore
	log   zerolog.Logger
}

func NewRosterImporter(store MenteeStore, log zerolog.Logger) *RosterImporter {
	return &RosterImporter{store: store, log: log}
}

// ImportCSV validates the header before touching any row, then processes
// rows one by one, skipping and counting failures rather than aborting.
func (ri *RosterImporter) ImportCSV(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewInvalidError("CSV is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	nameCol, idCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "name":
			nameCol = i
		case "discord_id":
			idCol = i
		}
	}
	if nameCol < 0 || idCol < 0 {
		return nil, NewInvalidError("CSV must contain 'name' and 'discord_id' columns")
	}

	summary := &ImportSummary{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		summary.Total++
		if err != nil {
			summary.rowFailed(fmt.Errorf("row %d: malformed row: %w", summary.Total, err))
			ri.log.Warn().Err(err).Int("row", summary.Total).Msg("roster import: malformed row")
			continue
		}

		if nameCol >= len(record) || idCol >= len(record) {
			summary.rowFailed(fmt.Errorf("row %d: missing columns", summary.Total))
			continue
		}
		name := strings.TrimSpace(record[nameCol])
		discordID := normalizeDiscordID(record[idCol])
		if name == "" || discordID == "" {
			summary.rowFailed(fmt.Errorf("row %d: empty name or discord_id", summary.Total))
			continue
		}

		_, added, err := ri.store.FindOrAddMentee(ctx, name, discordID)
		if err != nil {
			summary.rowFailed(fmt.Errorf("row %d: %w", summary.Total, err))
			ri.log.Warn().Err(err).Str("discord_id", discordID).Msg("roster import: row failed")
			continue
		}
		if added {
			summary.Added++
		} else {
			summary.Skipped++
		}
	}

	ri.log.Info().
		Int("total", summary.Total).
		Int("added", summary.Added).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("roster import finished")
	return summary, nil
}

func (s *ImportSummary) rowFailed(err error) {
	s.Failed++
	if s.FirstErr == nil {
		s.FirstErr = err
	}
}

// normalizeDiscordID keeps snowflake ids opaque strings. Spreadsheet
// exports sometimes render them as floats ("123.0"), which would corrupt
// the id if parsed numerically; only the literal suffix is stripped.
func normalizeDiscordID(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.TrimSuffix(id, ".0")
	return id
}
