package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mentorhub/updatebuddy/internal/models"
)

// ResponseStore abstracts the single persistence call intake needs.
type ResponseStore interface {
	AddResponse(ctx context.Context, discordID, text, voiceURL string) (*models.Response, error)
}

// Attachment carries the fields intake inspects from a platform upload.
type Attachment struct {
	ContentType string
	URL         string
}

// InboundMessage is one direct message as seen by the intake service.
type InboundMessage struct {
	SenderID    string
	Content     string
	Attachments []Attachment
}

// StoredResponse pairs a persisted response with the acknowledgment to
// send back for it.
type StoredResponse struct {
	Response *models.Response
	Ack      string
}

const (
	ackText  = "Thank you for your text response!"
	ackVoice = "Thank you for your voice response!"
)

// IntakeService turns inbound DMs into stored responses: non-empty text
// becomes one text response, and each audio attachment becomes one voice
// response, so a single message can yield zero, one, or several rows.
type IntakeService struct {
	store ResponseStore
	log   zerolog.Logger
}

func NewIntakeService(store ResponseStore, log zerolog.Logger) *IntakeService {
	return &IntakeService{store: store, log: log}
}

// HandleMessage stores whatever the message carries and returns one entry
// per stored response. Messages from unknown senders store nothing and
// get no acknowledgment; the silent ignore is deliberate.
func (s *IntakeService) HandleMessage(ctx context.Context, msg InboundMessage) ([]StoredResponse, error) {
	stored := []StoredResponse{}

	if strings.TrimSpace(msg.Content) != "" {
		resp, err := s.store.AddResponse(ctx, msg.SenderID, msg.Content, "")
		if err != nil {
			return stored, err
		}
		if resp != nil {
			stored = append(stored, StoredResponse{Response: resp, Ack: ackText})
		} else {
			s.log.Debug().Str("sender", msg.SenderID).Msg("intake: text from unknown sender ignored")
		}
	}

	for _, att := range msg.Attachments {
		if !strings.Contains(att.ContentType, "audio") {
			continue
		}
		resp, err := s.store.AddResponse(ctx, msg.SenderID, "", att.URL)
		if err != nil {
			return stored, err
		}
		if resp != nil {
			stored = append(stored, StoredResponse{Response: resp, Ack: ackVoice})
		} else {
			s.log.Debug().Str("sender", msg.SenderID).Msg("intake: voice from unknown sender ignored")
		}
	}

	return stored, nil
}
