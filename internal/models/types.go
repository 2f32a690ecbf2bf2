package models

import "time"

// Mentee is a roster member eligible to receive weekly reminders and
// submit check-ins. DiscordID is the stable platform identifier and is
// unique across all mentees; it is kept as an opaque string to avoid
// precision loss on large snowflake ids.
type Mentee struct {
	ID        int64
	Name      string
	DiscordID string
	CreatedAt time.Time
}

// Response is one submitted check-in. Exactly one of Text or VoiceURL is
// set per row. Rows are append-only; a mentee may have several for the
// same week if they reply more than once.
type Response struct {
	ID         int64
	MenteeID   int64
	WeekNumber int
	Text       string
	VoiceURL   string
	CreatedAt  time.Time

	// Mentee is attached on list reads so callers can render without a
	// second round trip.
	Mentee *Mentee
}

// ExportRow is one line of the full responses/mentees join, newest first.
type ExportRow struct {
	WeekNumber int
	MenteeName string
	DiscordID  string
	Text       string
	VoiceURL   string
	CreatedAt  time.Time
}
