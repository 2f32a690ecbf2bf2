package services

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/mentorhub/updatebuddy/internal/models"
)

type stubQueryStore struct {
	byDiscordID map[string][]*models.Response
	byName      map[string][]*models.Response
}

func (s *stubQueryStore) ListResponsesByDiscordID(_ context.Context, id string) ([]*models.Response, error) {
	return s.byDiscordID[id], nil
}

func (s *stubQueryStore) ListResponsesByName(_ context.Context, name string) ([]*models.Response, error) {
	return s.byName[name], nil
}

func sampleResponses() []*models.Response {
	mentee := &models.Mentee{ID: 1, Name: "Ada", DiscordID: "1001"}
	return []*models.Response{
		{ID: 2, WeekNumber: 10, Text: "built the importer", CreatedAt: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC), Mentee: mentee},
		{ID: 1, WeekNumber: 9, VoiceURL: "https://cdn.example/a.ogg", CreatedAt: time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC), Mentee: mentee},
	}
}

func TestGetResponsesByDiscordID(t *testing.T) {
	store := &stubQueryStore{byDiscordID: map[string][]*models.Response{"1001": sampleResponses()}}
	chunks, err := NewQueryService(store).GetResponses(context.Background(), "1001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	out := chunks[0]
	for _, want := range []string{
		"Responses for Ada (1001):",
		"Week 10:",
		"Text: built the importer",
		"Week 9:",
		"Voice: https://cdn.example/a.ogg",
		"Date: 2026-03-04 10:00 UTC",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGetResponsesNameFallback(t *testing.T) {
	store := &stubQueryStore{
		byDiscordID: map[string][]*models.Response{},
		byName:      map[string][]*models.Response{"Ada": sampleResponses()},
	}
	chunks, err := NewQueryService(store).GetResponses(context.Background(), "Ada")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(chunks[0], "Responses for Ada (1001):") {
		t.Fatalf("fallback output wrong:\n%s", chunks[0])
	}
}

func TestGetResponsesNotFound(t *testing.T) {
	store := &stubQueryStore{byDiscordID: map[string][]*models.Response{}, byName: map[string][]*models.Response{}}
	_, err := NewQueryService(store).GetResponses(context.Background(), "ghost")
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("err = %v, want not_found ServiceError", err)
	}
	if !strings.Contains(se.Message, "ghost") {
		t.Fatalf("message = %q, want it to name the identifier", se.Message)
	}
}

func TestGetResponsesEmptyIdentifier(t *testing.T) {
	store := &stubQueryStore{}
	_, err := NewQueryService(store).GetResponses(context.Background(), "  ")
	if se, ok := AsServiceError(err); !ok || se.Code != ErrorInvalid {
		t.Fatalf("err = %v, want invalid ServiceError", err)
	}
}

func TestGetResponsesChunksLongOutput(t *testing.T) {
	mentee := &models.Mentee{ID: 1, Name: "Ada", DiscordID: "1001"}
	long := strings.Repeat("x", 600)
	rs := []*models.Response{}
	for i := 0; i < 8; i++ {
		rs = append(rs, &models.Response{ID: int64(i), WeekNumber: i, Text: long, Mentee: mentee})
	}
	store := &stubQueryStore{byDiscordID: map[string][]*models.Response{"1001": rs}}

	chunks, err := NewQueryService(store).GetResponses(context.Background(), "1001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want output split", len(chunks))
	}
	total := 0
	for i, c := range chunks {
		if len(c) > 1900 {
			t.Fatalf("chunk %d length = %d, want <= 1900", i, len(c))
		}
		total += len(c)
	}
	if total != len(formatResponses("1001", rs)) {
		t.Fatalf("chunking lost content: %d vs %d", total, len(formatResponses("1001", rs)))
	}
}

func TestGetResponsesChunksKeepRunesIntact(t *testing.T) {
	mentee := &models.Mentee{ID: 1, Name: "Ada", DiscordID: "1001"}
	long := strings.Repeat("€", 700) // 3 bytes each; boundaries land mid-rune
	rs := []*models.Response{}
	for i := 0; i < 4; i++ {
		rs = append(rs, &models.Response{ID: int64(i), WeekNumber: i, Text: long, Mentee: mentee})
	}
	store := &stubQueryStore{byDiscordID: map[string][]*models.Response{"1001": rs}}

	chunks, err := NewQueryService(store).GetResponses(context.Background(), "1001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want output split", len(chunks))
	}
	rebuilt := ""
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8", i)
		}
		if len(c) > 1900 {
			t.Fatalf("chunk %d length = %d, want <= 1900", i, len(c))
		}
		rebuilt += c
	}
	if rebuilt != formatResponses("1001", rs) {
		t.Fatalf("chunking altered content")
	}
}
