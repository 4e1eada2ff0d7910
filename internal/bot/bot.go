package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joelikes8/Random-bot/internal/analytics"
	"github.com/joelikes8/Random-bot/internal/config"
	"github.com/joelikes8/Random-bot/internal/modules/audit"
	"github.com/joelikes8/Random-bot/internal/roblox"
	"github.com/joelikes8/Random-bot/internal/storage"
	"github.com/joelikes8/Random-bot/internal/utils"
	"github.com/joelikes8/Random-bot/internal/verification"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Directory is the part of the Roblox client the command layer reads from
// directly, outside the verification flow.
type Directory interface {
	FetchProfile(ctx context.Context, accountID string) (roblox.Profile, error)
	UserGroups(ctx context.Context, accountID string) ([]roblox.Group, error)
	InGroup(ctx context.Context, accountID, groupID string) (bool, error)
}

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	service   *verification.Service
	directory Directory
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	cooldown  *utils.Cooldown
	profiles  *profileCache
	stop      chan struct{}
	// done closes when the cooldown sweeper exits. Nil until Start runs it.
	done chan struct{}
}

func New(cfg config.Config, logger *zap.Logger, service *verification.Service, directory Directory, auditLogger *audit.Logger, analyticsEngine *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	profiles, err := newProfileCache(cfg.Verification.InfoCacheSize, time.Duration(cfg.Verification.InfoCacheTTLSeconds)*time.Second)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		service:   service,
		directory: directory,
		audit:     auditLogger,
		analytics: analyticsEngine,
		session:   session,
		cooldown:  utils.NewCooldown(cfg.Verification.RequestLimit, time.Duration(cfg.Verification.RequestWindowSeconds)*time.Second),
		profiles:  profiles,
		stop:      make(chan struct{}),
	}

	if b.audit != nil && cfg.Notifications.AuditChannelID != "" {
		b.audit.SetNotifier(b.notifyAudit)
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.done = make(chan struct{})
	go b.sweepCooldowns()

	return nil
}

// Close stops background work and disconnects, waiting for the sweeper at
// most until ctx ends.
func (b *Bot) Close(ctx context.Context) {
	close(b.stop)
	if b.done != nil {
		select {
		case <-b.done:
		case <-ctx.Done():
			b.logger.Warn("shutdown timed out waiting for background work", zap.Error(ctx.Err()))
		}
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) sweepCooldowns() {
	defer close(b.done)
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case now := <-ticker.C:
			b.cooldown.Sweep(now)
		}
	}
}

func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	embed := b.buildAuditEmbed(entry)
	if _, err := b.session.ChannelMessageSendEmbed(b.cfg.Notifications.AuditChannelID, embed, discordgo.WithContext(ctx)); err != nil {
		b.logger.Warn("audit notification failed", zap.String("event", entry.Event), zap.Error(err))
	}
}

func (b *Bot) buildAuditEmbed(entry storage.AuditLog) *discordgo.MessageEmbed {
	userValue := "system"
	if entry.RequesterID != "" {
		userValue = "<@" + entry.RequesterID + ">"
	}
	color := b.cfg.Notifications.EmbedColors.Warning
	if entry.Level == audit.LevelCrit {
		color = b.cfg.Notifications.EmbedColors.Error
	}
	details := entry.Details
	if details == "" {
		details = "-"
	}
	return &discordgo.MessageEmbed{
		Title:     "Verification audit",
		Color:     color,
		Timestamp: entry.CreatedAt.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Event", Value: eventLabel(entry.Event), Inline: false},
			{Name: "Level", Value: entry.Level, Inline: true},
			{Name: "User", Value: userValue, Inline: true},
			{Name: "Details", Value: details, Inline: false},
		},
	}
}

func eventLabel(event string) string {
	switch event {
	case verification.EventPolicyOverride:
		return "Policy override applied"
	case verification.EventPersistenceFail:
		return "Storage failure"
	case verification.EventFetchFailed:
		return "Roblox profile unreachable"
	case verification.EventConfirmed:
		return "Verification confirmed"
	case verification.EventRequested:
		return "Verification requested"
	case verification.EventCodeNotFound:
		return "Code not found in profile"
	case verification.EventNotFound:
		return "Username not found"
	default:
		return event
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

// deferEphemeral acknowledges the interaction so the answer can arrive later
// as a follow-up.
func (b *Bot) deferEphemeral(session *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	return session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (b *Bot) followupEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, logger *zap.Logger) {
	_, err := session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		logger.Warn("followup failed", zap.Error(err))
	}
}

func formatReport(report analytics.Report) string {
	return fmt.Sprintf("Total: %d | INFO: %d | WARN: %d | CRIT: %d", report.Total, report.ByLevel[audit.LevelInfo], report.ByLevel[audit.LevelWarn], report.ByLevel[audit.LevelCrit])
}

func formatEventCounts(byEvent map[string]int) string {
	if len(byEvent) == 0 {
		return "-"
	}
	events := make([]string, 0, len(byEvent))
	for event := range byEvent {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		if byEvent[events[i]] != byEvent[events[j]] {
			return byEvent[events[i]] > byEvent[events[j]]
		}
		return events[i] < events[j]
	})
	lines := make([]string, 0, len(events))
	for _, event := range events {
		lines = append(lines, fmt.Sprintf("%s: %d", eventLabel(event), byEvent[event]))
	}
	return strings.Join(lines, "\n")
}
