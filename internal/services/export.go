package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mentorhub/updatebuddy/internal/models"
)

// ExportStore abstracts the full-join read behind the export.
type ExportStore interface {
	ExportAllResponses(ctx context.Context) ([]models.ExportRow, error)
}

// ExportService materializes all responses as a CSV file on scoped
// storage. The caller owns removal of the returned file.
type ExportService struct {
	store ExportStore
	dir   string
}

func NewExportService(store ExportStore, dir string) *ExportService {
	if dir == "" {
		dir = os.TempDir()
	}
	return &ExportService{store: store, dir: dir}
}

// RenderExportCSV writes the join rows as CSV. The header row is always
// present, so an empty set still yields a valid file.
func RenderExportCSV(rows []models.ExportRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"week_number", "mentee_name", "discord_id", "text_response", "voice_response_url", "created_at"})
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.WeekNumber),
			r.MenteeName,
			r.DiscordID,
			r.Text,
			r.VoiceURL,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// CreateExportFile renders the full join into a uniquely named temporary
// file and returns its path. Callers must remove the file once delivery
// is done, whether or not it succeeded.
func (s *ExportService) CreateExportFile(ctx context.Context) (string, error) {
	rows, err := s.store.ExportAllResponses(ctx)
	if err != nil {
		return "", err
	}
	data, err := RenderExportCSV(rows)
	if err != nil {
		return "", fmt.Errorf("render export csv: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("responses_%s.csv", uuid.NewString()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}
