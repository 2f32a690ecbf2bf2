// Package bot wires the Discord gateway to the check-in services: admin
// commands in guild channels, response intake on every direct message.
package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mentorhub/updatebuddy/internal/services"
)

const commandPrefix = "!"

const genericFailure = "Something went wrong while handling that command. Please try again."

// Scheduler is the slice of the reminder scheduler the command surface
// drives.
type Scheduler interface {
	SetSchedule(day string, hour, minute int) error
}

// Deps collects the services the bot dispatches into.
type Deps struct {
	Importer  *services.RosterImporter
	Intake    *services.IntakeService
	Query     *services.QueryService
	Export    *services.ExportService
	Scheduler Scheduler
}

type Bot struct {
	session *discordgo.Session
	deps    Deps
	log     zerolog.Logger
	tmpDir  string
	http    *http.Client
}

func New(session *discordgo.Session, deps Deps, log zerolog.Logger) *Bot {
	b := &Bot{
		session: session,
		deps:    deps,
		log:     log,
		tmpDir:  os.TempDir(),
		http:    http.DefaultClient,
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentGuildMembers |
		discordgo.IntentMessageContent
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	return b
}

func (b *Bot) Open() error  { return b.session.Open() }
func (b *Bot) Close() error { return b.session.Close() }

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.String()).Msg("logged in")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		b.handleDM(m)
		return
	}
	if strings.HasPrefix(m.Content, commandPrefix) {
		b.handleCommand(s, m)
	}
}

// handleDM treats every direct message as an intake event. Unknown
// senders get no reply at all.
func (b *Bot) handleDM(m *discordgo.MessageCreate) {
	msg := services.InboundMessage{
		SenderID: m.Author.ID,
		Content:  m.Content,
	}
	for _, att := range m.Attachments {
		msg.Attachments = append(msg.Attachments, services.Attachment{
			ContentType: att.ContentType,
			URL:         att.URL,
		})
	}

	// A failure partway still returns what was stored before it; those
	// responses are persisted and owed an acknowledgment.
	stored, err := b.deps.Intake.HandleMessage(context.Background(), msg)
	for _, sr := range stored {
		if _, serr := b.session.ChannelMessageSend(m.ChannelID, sr.Ack); serr != nil {
			b.log.Warn().Err(serr).Str("sender", m.Author.ID).Msg("send acknowledgment")
		}
	}
	if err != nil {
		b.log.Error().Err(err).Str("sender", m.Author.ID).Msg("intake failed")
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	fields := strings.Fields(strings.TrimPrefix(m.Content, commandPrefix))
	if len(fields) == 0 {
		return
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "load_mentees", "start_reminders", "get_responses", "export_responses":
	default:
		return
	}

	if !b.isAdmin(s, m) {
		b.reply(m.ChannelID, "You need administrator permissions to use this command.")
		return
	}

	switch name {
	case "load_mentees":
		b.cmdLoadMentees(m)
	case "start_reminders":
		b.cmdStartReminders(m, args)
	case "get_responses":
		b.cmdGetResponses(m, args)
	case "export_responses":
		b.cmdExportResponses(m)
	}
}

func (b *Bot) isAdmin(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		b.log.Warn().Err(err).Str("user", m.Author.ID).Msg("permission lookup failed")
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func (b *Bot) reply(channelID, content string) {
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		b.log.Warn().Err(err).Msg("send reply")
	}
}

// replyErr maps service errors to admin-facing messages: validation and
// not-found messages verbatim, anything else a generic failure line.
func (b *Bot) replyErr(channelID string, err error) {
	if se, ok := services.AsServiceError(err); ok {
		b.reply(channelID, se.Message)
		return
	}
	b.log.Error().Err(err).Msg("command failed")
	b.reply(channelID, genericFailure)
}

func (b *Bot) cmdLoadMentees(m *discordgo.MessageCreate) {
	var csvAtt *discordgo.MessageAttachment
	for _, att := range m.Attachments {
		if strings.HasSuffix(strings.ToLower(att.Filename), ".csv") {
			csvAtt = att
			break
		}
	}
	if csvAtt == nil {
		b.reply(m.ChannelID, "Please provide a CSV file")
		return
	}

	staged, err := b.stageAttachment(csvAtt.URL)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	defer func() {
		if rerr := os.Remove(staged); rerr != nil {
			b.log.Warn().Err(rerr).Str("path", staged).Msg("remove staged roster")
		}
	}()

	f, err := os.Open(staged)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	defer f.Close()

	summary, err := b.deps.Importer.ImportCSV(context.Background(), f)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	b.reply(m.ChannelID, summary.String())
}

// stageAttachment downloads the upload into a uniquely named temp file
// and returns its path. The caller removes it regardless of outcome.
func (b *Bot) stageAttachment(url string) (string, error) {
	resp, err := b.http.Get(url)
	if err != nil {
		return "", fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download attachment: status %d", resp.StatusCode)
	}

	path := filepath.Join(b.tmpDir, fmt.Sprintf("roster_%s.csv", uuid.NewString()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("stage attachment: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("stage attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("stage attachment: %w", err)
	}
	return path, nil
}

func (b *Bot) cmdStartReminders(m *discordgo.MessageCreate, args []string) {
	if len(args) != 3 {
		b.reply(m.ChannelID, "Usage: !start_reminders <day> <hour> <minute>")
		return
	}
	hour, errH := strconv.Atoi(args[1])
	minute, errM := strconv.Atoi(args[2])
	if errH != nil || errM != nil {
		b.reply(m.ChannelID, "Invalid time. Hour must be 0-23 and minute must be 0-59")
		return
	}
	if err := b.deps.Scheduler.SetSchedule(args[0], hour, minute); err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	day := strings.ToLower(args[0])
	b.reply(m.ChannelID, fmt.Sprintf("Weekly reminders scheduled for every %s%s at %02d:%02d",
		strings.ToUpper(day[:1]), day[1:], hour, minute))
}

func (b *Bot) cmdGetResponses(m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(m.ChannelID, "Usage: !get_responses <discord id or name>")
		return
	}
	identifier := strings.Join(args, " ")
	chunks, err := b.deps.Query.GetResponses(context.Background(), identifier)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	for _, chunk := range chunks {
		b.reply(m.ChannelID, chunk)
	}
}

func (b *Bot) cmdExportResponses(m *discordgo.MessageCreate) {
	path, err := b.deps.Export.CreateExportFile(context.Background())
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	defer func() {
		if rerr := os.Remove(path); rerr != nil {
			b.log.Warn().Err(rerr).Str("path", path).Msg("remove export file")
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	defer f.Close()

	if _, err := b.session.ChannelFileSendWithMessage(m.ChannelID,
		"Responses exported successfully!", filepath.Base(path), f); err != nil {
		b.replyErr(m.ChannelID, err)
	}
}
