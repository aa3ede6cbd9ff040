package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/ports"
)

type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts advisories as embeds to a fixed channel.
type Notifier struct {
	sender    embedSender
	channelID string
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier binds a bot session to the alert channel.
func NewNotifier(session *discordgo.Session, channelID string) *Notifier {
	return &Notifier{sender: session, channelID: channelID}
}

// Publish sends one embed message.
func (n *Notifier) Publish(ctx context.Context, notification domain.Notification) error {
	if n.sender == nil || n.channelID == "" {
		return fmt.Errorf("discord notifier misconfigured")
	}
	if _, err := n.sender.ChannelMessageSendEmbed(n.channelID, ToEmbed(notification), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send embed to channel %s: %w", n.channelID, err)
	}
	return nil
}
