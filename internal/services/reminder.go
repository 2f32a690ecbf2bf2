package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mentorhub/updatebuddy/internal/models"
)

// MenteeLister enumerates the broadcast audience.
type MenteeLister interface {
	ListAllMentees(ctx context.Context) ([]*models.Mentee, error)
}

// Sender delivers one direct message to a mentee.
type Sender interface {
	SendDM(discordID, content string) error
}

// ScheduleSpec is the weekly trigger: a three-letter day code plus
// 24-hour time.
type ScheduleSpec struct {
	Day    string `validate:"required,oneof=sun mon tue wed thu fri sat"`
	Hour   int    `validate:"gte=0,lte=23"`
	Minute int    `validate:"gte=0,lte=59"`
}

const reminderPrompt = "Hi! I'm the **Update Buddy**, here to collect your weekly check-in 📝\n\n" +
	"Your responses are reviewed by the mentorship team and help us personalize your experience during Office Hour sessions and beyond.\n\n" +
	"1. **This week's progress** – What did you work on and accomplish?\n" +
	"2. **Any blockers** – Are you facing any challenges we should be aware of or help you with?\n" +
	"3. **Next week's focus** – What are your key priorities for the coming week?\n\n" +
	"Please make sure to reply with your update as soon as you can - latest by Sunday EoD. Looking forward to your update 🙂!"

// ReminderScheduler keeps at most one active weekly schedule and fans the
// prompt out to every mentee when it fires. Per-mentee delivery failures
// are logged and do not stop the loop.
type ReminderScheduler struct {
	store    MenteeLister
	sender   Sender
	log      zerolog.Logger
	validate *validator.Validate

	mu       sync.Mutex
	cron     *cron.Cron
	entryID  cron.EntryID
	active   ScheduleSpec
	hasEntry bool
}

func NewReminderScheduler(store MenteeLister, sender Sender, log zerolog.Logger) *ReminderScheduler {
	r := &ReminderScheduler{
		store:    store,
		sender:   sender,
		log:      log,
		validate: validator.New(),
		cron:     cron.New(),
	}
	r.cron.Start()
	return r
}

// SetSchedule validates the inputs and atomically replaces any prior
// schedule, so duplicate triggers cannot accumulate.
func (r *ReminderScheduler) SetSchedule(day string, hour, minute int) error {
	spec := ScheduleSpec{Day: strings.ToLower(strings.TrimSpace(day)), Hour: hour, Minute: minute}
	if err := r.validate.Struct(spec); err != nil {
		return scheduleValidationError(err)
	}

	expr := fmt.Sprintf("%d %d * * %s", spec.Minute, spec.Hour, spec.Day)
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.cron.AddFunc(expr, r.broadcast)
	if err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	if r.hasEntry {
		r.cron.Remove(r.entryID)
	}
	r.entryID = id
	r.active = spec
	r.hasEntry = true

	r.log.Info().Str("day", spec.Day).Int("hour", spec.Hour).Int("minute", spec.Minute).
		Msg("weekly reminder schedule set")
	return nil
}

func scheduleValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if verrs[0].Field() == "Day" {
			return NewInvalidError("Invalid day. Please use one of: sun, mon, tue, wed, thu, fri, sat")
		}
		return NewInvalidError("Invalid time. Hour must be 0-23 and minute must be 0-59")
	}
	return NewInvalidError(err.Error())
}

// Schedule reports the active schedule, if any.
func (r *ReminderScheduler) Schedule() (ScheduleSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.hasEntry
}

// Stop halts the cron engine. Running triggers finish on their own.
func (r *ReminderScheduler) Stop() {
	r.cron.Stop()
}

// broadcast delivers the prompt to every mentee sequentially. There is no
// retry and no cancellation; an unreachable mentee costs one log line.
func (r *ReminderScheduler) broadcast() {
	ctx := context.Background()
	mentees, err := r.store.ListAllMentees(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("reminder broadcast: list mentees")
		return
	}
	sent := 0
	for _, m := range mentees {
		if err := r.sender.SendDM(m.DiscordID, reminderPrompt); err != nil {
			r.log.Warn().Err(err).Str("name", m.Name).Str("discord_id", m.DiscordID).
				Msg("reminder delivery failed")
			continue
		}
		sent++
	}
	r.log.Info().Int("sent", sent).Int("total", len(mentees)).Msg("reminder broadcast finished")
}

func (r *ReminderScheduler) entryCount() int {
	return len(r.cron.Entries())
}
