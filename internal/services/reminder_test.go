package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mentorhub/updatebuddy/internal/models"
)

type stubMenteeLister struct {
	mentees []*models.Mentee
	err     error
}

func (s *stubMenteeLister) ListAllMentees(context.Context) ([]*models.Mentee, error) {
	return s.mentees, s.err
}

type stubSender struct {
	sent   []string
	failID string
}

func (s *stubSender) SendDM(discordID, content string) error {
	if discordID == s.failID {
		return errors.New("user unreachable")
	}
	if !strings.Contains(content, "weekly check-in") {
		return errors.New("unexpected prompt body")
	}
	s.sent = append(s.sent, discordID)
	return nil
}

func newTestScheduler(t *testing.T, lister MenteeLister, sender Sender) *ReminderScheduler {
	t.Helper()
	r := NewReminderScheduler(lister, sender, zerolog.Nop())
	t.Cleanup(r.Stop)
	return r
}

func TestSetScheduleValid(t *testing.T) {
	r := newTestScheduler(t, &stubMenteeLister{}, &stubSender{})
	if err := r.SetSchedule("Mon", 9, 30); err != nil {
		t.Fatalf("set: %v", err)
	}
	spec, ok := r.Schedule()
	if !ok {
		t.Fatalf("no active schedule after set")
	}
	if spec.Day != "mon" || spec.Hour != 9 || spec.Minute != 30 {
		t.Fatalf("spec = %+v, want mon/9/30", spec)
	}
	if r.entryCount() != 1 {
		t.Fatalf("entries = %d, want 1", r.entryCount())
	}
}

func TestSetScheduleReplacesPrior(t *testing.T) {
	r := newTestScheduler(t, &stubMenteeLister{}, &stubSender{})
	if err := r.SetSchedule("mon", 9, 30); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := r.SetSchedule("fri", 14, 0); err != nil {
		t.Fatalf("second set: %v", err)
	}
	spec, _ := r.Schedule()
	if spec.Day != "fri" || spec.Hour != 14 || spec.Minute != 0 {
		t.Fatalf("spec = %+v, want fri/14/0", spec)
	}
	if r.entryCount() != 1 {
		t.Fatalf("entries = %d, want exactly 1 after replacement", r.entryCount())
	}
}

func TestSetScheduleValidation(t *testing.T) {
	r := newTestScheduler(t, &stubMenteeLister{}, &stubSender{})
	cases := []struct {
		day          string
		hour, minute int
		wantInMsg    string
	}{
		{"funday", 9, 0, "Invalid day"},
		{"", 9, 0, "Invalid day"},
		{"mon", 24, 0, "Invalid time"},
		{"mon", -1, 0, "Invalid time"},
		{"mon", 9, 60, "Invalid time"},
	}
	for _, tc := range cases {
		err := r.SetSchedule(tc.day, tc.hour, tc.minute)
		se, ok := AsServiceError(err)
		if !ok || se.Code != ErrorInvalid {
			t.Fatalf("(%q,%d,%d): err = %v, want invalid ServiceError", tc.day, tc.hour, tc.minute, err)
		}
		if !strings.Contains(se.Message, tc.wantInMsg) {
			t.Fatalf("(%q,%d,%d): message = %q, want %q", tc.day, tc.hour, tc.minute, se.Message, tc.wantInMsg)
		}
	}
	if _, ok := r.Schedule(); ok {
		t.Fatalf("schedule active after rejected inputs")
	}
	if r.entryCount() != 0 {
		t.Fatalf("entries = %d, want 0", r.entryCount())
	}
}

func TestBroadcastFanOutIsolation(t *testing.T) {
	lister := &stubMenteeLister{mentees: []*models.Mentee{
		{ID: 1, Name: "Ada", DiscordID: "1001"},
		{ID: 2, Name: "Grace", DiscordID: "1002"},
		{ID: 3, Name: "Lin", DiscordID: "1003"},
	}}
	sender := &stubSender{failID: "1002"}
	r := newTestScheduler(t, lister, sender)

	r.broadcast()

	if len(sender.sent) != 2 {
		t.Fatalf("sent = %v, want delivery to continue past the failure", sender.sent)
	}
	if sender.sent[0] != "1001" || sender.sent[1] != "1003" {
		t.Fatalf("sent = %v, want 1001 then 1003", sender.sent)
	}
}

func TestBroadcastListFailure(t *testing.T) {
	sender := &stubSender{}
	r := newTestScheduler(t, &stubMenteeLister{err: errors.New("store down")}, sender)
	r.broadcast()
	if len(sender.sent) != 0 {
		t.Fatalf("sent = %v, want none when listing fails", sender.sent)
	}
}
