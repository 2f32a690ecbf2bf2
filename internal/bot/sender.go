package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DMSender delivers reminder prompts over Discord direct messages. It
// satisfies services.Sender.
type DMSender struct {
	session *discordgo.Session
}

func NewDMSender(session *discordgo.Session) *DMSender {
	return &DMSender{session: session}
}

func (d *DMSender) SendDM(discordID, content string) error {
	ch, err := d.session.UserChannelCreate(discordID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := d.session.ChannelMessageSend(ch.ID, content); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}
