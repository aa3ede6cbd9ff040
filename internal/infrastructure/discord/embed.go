package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"CVEWatch/internal/domain"
)

// MaxEmbedsPerMessage is Discord's per-message embed cap.
const MaxEmbedsPerMessage = 10

// ToEmbed renders a notification as a rich embed.
func ToEmbed(n domain.Notification) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		URL:         n.URL,
		Description: n.Description,
		Color:       n.Color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Summary", Value: fieldValue(n.Summary)},
			{Name: "CVSS", Value: fieldValue(n.Score), Inline: true},
			{Name: "Published", Value: fieldValue(n.Published), Inline: true},
			{Name: "Link", Value: fieldValue(n.URL)},
		},
	}
	if !n.Timestamp.IsZero() {
		embed.Timestamp = n.Timestamp.UTC().Format(time.RFC3339)
	}
	return embed
}

// Discord rejects empty field values.
func fieldValue(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ChunkEmbeds splits embeds into message-sized batches, preserving order.
func ChunkEmbeds(embeds []*discordgo.MessageEmbed) [][]*discordgo.MessageEmbed {
	var chunks [][]*discordgo.MessageEmbed
	for len(embeds) > 0 {
		n := min(len(embeds), MaxEmbedsPerMessage)
		chunks = append(chunks, embeds[:n])
		embeds = embeds[n:]
	}
	return chunks
}
