package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mentorhub/updatebuddy/internal/models"
)

// QueryStore abstracts the eager-join listings the query service reads.
type QueryStore interface {
	ListResponsesByDiscordID(ctx context.Context, discordID string) ([]*models.Response, error)
	ListResponsesByName(ctx context.Context, name string) ([]*models.Response, error)
}

const (
	// Discord rejects messages over 2000 characters; chunks stop at 1900
	// to leave headroom for framing.
	transportLimit = 2000
	chunkLimit     = 1900
)

// QueryService renders a mentee's responses for display.
type QueryService struct {
	store QueryStore
}

func NewQueryService(store QueryStore) *QueryService {
	return &QueryService{store: store}
}

// GetResponses resolves identifier as a discord id first and falls back
// to a name lookup, returning formatted message chunks. A not_found
// ServiceError means neither lookup matched anything.
func (s *QueryService) GetResponses(ctx context.Context, identifier string) ([]string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, NewInvalidError("identifier required")
	}

	responses, err := s.store.ListResponsesByDiscordID(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		responses, err = s.store.ListResponsesByName(ctx, identifier)
		if err != nil {
			return nil, err
		}
	}
	if len(responses) == 0 {
		return nil, NewNotFoundError(fmt.Sprintf("No responses or mentee found for '%s'", identifier))
	}

	return chunkMessage(formatResponses(identifier, responses)), nil
}

func formatResponses(identifier string, responses []*models.Response) string {
	name, discordID := identifier, "Unknown"
	if m := responses[0].Mentee; m != nil {
		name, discordID = m.Name, m.DiscordID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Responses for %s (%s):\n\n", name, discordID)
	for _, r := range responses {
		fmt.Fprintf(&b, "Week %d:\n", r.WeekNumber)
		if r.Text != "" {
			fmt.Fprintf(&b, "Text: %s\n", r.Text)
		}
		if r.VoiceURL != "" {
			fmt.Fprintf(&b, "Voice: %s\n", r.VoiceURL)
		}
		fmt.Fprintf(&b, "Date: %s\n\n", r.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	return b.String()
}

func chunkMessage(msg string) []string {
	if len(msg) <= transportLimit {
		return []string{msg}
	}
	chunks := []string{}
	for len(msg) > chunkLimit {
		// Never cut a multi-byte rune in half; walk back to its start.
		cut := chunkLimit
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		if cut == 0 {
			cut = chunkLimit
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	if msg != "" {
		chunks = append(chunks, msg)
	}
	return chunks
}
