package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"CVEWatch/internal/usecase"
)

// replyTimeout bounds the final edit and follow-ups; the interaction token
// outlives the search budget.
const replyTimeout = 30 * time.Second

// Slash command surface.
const (
	CommandName    = "cve-search"
	QuestionOption = "question"
)

// Answerer runs the on-demand search pipeline.
type Answerer interface {
	Answer(ctx context.Context, question string) usecase.Reply
}

type interactionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// NewSession builds a bot session; it does not connect.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	return session, nil
}

// Command is the slash command definition registered with Discord.
func Command() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        CommandName,
		Description: "Search NVD for CVEs with a natural-language question",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        QuestionOption,
				Description: "e.g. critical Chrome bugs published this month",
				Required:    true,
			},
		},
	}
}

// RegisterCommands creates or overwrites the slash command for an
// application, scoped to a guild when guildID is set.
func RegisterCommands(session *discordgo.Session, appID, guildID string) (*discordgo.ApplicationCommand, error) {
	if appID == "" {
		return nil, fmt.Errorf("discord application id is required")
	}
	cmd, err := session.ApplicationCommandCreate(appID, guildID, Command())
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", CommandName, err)
	}
	return cmd, nil
}

// Bot serves the slash command on an open gateway session.
type Bot struct {
	session  *discordgo.Session
	answerer Answerer
	logger   *slog.Logger
	timeout  time.Duration
	remove   func()
}

// NewBot wires the search pipeline into the gateway session.
func NewBot(session *discordgo.Session, answerer Answerer, timeout time.Duration, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Bot{session: session, answerer: answerer, logger: logger, timeout: timeout}
}

// Start registers the interaction handler and opens the gateway.
func (b *Bot) Start(ctx context.Context) error {
	b.remove = b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		b.handle(reqCtx, s, i)
	})
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	b.logger.Info("discord gateway connected")
	return nil
}

// Close removes the handler and disconnects.
func (b *Bot) Close() error {
	if b.remove != nil {
		b.remove()
		b.remove = nil
	}
	return b.session.Close()
}

func (b *Bot) handle(ctx context.Context, r interactionResponder, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != CommandName {
		return
	}

	question := ""
	for _, opt := range data.Options {
		if opt.Name == QuestionOption && opt.Type == discordgo.ApplicationCommandOptionString {
			question = strings.TrimSpace(opt.StringValue())
		}
	}

	err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
	if err != nil {
		b.logger.Error("defer interaction failed", "error", err)
		return
	}

	reply := b.answerer.Answer(ctx, question)
	b.logger.Info("search answered", "question", question, "status", reply.Status, "results", len(reply.Notifications))

	embeds := make([]*discordgo.MessageEmbed, 0, len(reply.Notifications))
	for _, n := range reply.Notifications {
		embeds = append(embeds, ToEmbed(n))
	}
	chunks := ChunkEmbeds(embeds)

	replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()

	content := reply.Message
	first := []*discordgo.MessageEmbed{}
	if len(chunks) > 0 {
		first = chunks[0]
	}
	if _, err := r.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &first,
	}, discordgo.WithContext(replyCtx)); err != nil {
		b.logger.Error("edit interaction reply failed", "error", err)
		return
	}

	for _, chunk := range chunks[min(1, len(chunks)):] {
		if _, err := r.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Embeds: chunk}, discordgo.WithContext(replyCtx)); err != nil {
			b.logger.Error("follow-up message failed", "error", err)
			return
		}
	}
}
