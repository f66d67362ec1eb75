package notifier

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/foxseedlab/punchclock/internal/notifier"
)

// DiscordNotifier posts reminders to one channel over the REST API; it
// never opens a gateway connection.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordNotifier(token, channelID string) (notifier.Notifier, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &DiscordNotifier{session: s, channelID: channelID}, nil
}

func (n *DiscordNotifier) Send(ctx context.Context, msg notifier.Message) error {
	_, err := n.session.ChannelMessageSend(n.channelID, notifier.Text(msg), discordgo.WithContext(ctx))
	return err
}
