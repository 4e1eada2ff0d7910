package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joelikes8/Random-bot/internal/modules/audit"
	"github.com/joelikes8/Random-bot/internal/roblox"
	"github.com/joelikes8/Random-bot/internal/storage"
	"github.com/joelikes8/Random-bot/internal/verification"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	commandTimeout = 2 * time.Minute
	maxNickname    = 32
	maxFieldValue  = 1024
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	data := interaction.ApplicationCommandData()
	requesterID := interactionUserID(interaction)
	logger := b.logger.With(
		zap.String("interaction_id", uuid.NewString()),
		zap.String("command", data.Name),
		zap.String("guild_id", interaction.GuildID),
		zap.String("user_id", requesterID),
	)

	switch data.Name {
	case "verify":
		b.handleSubmit(ctx, session, interaction, logger, requesterID, optionString(data.Options, "roblox_username"), false)
	case "update":
		b.handleSubmit(ctx, session, interaction, logger, requesterID, optionString(data.Options, "roblox_username"), true)
	case "verify-confirm":
		b.handleConfirm(ctx, session, interaction, logger, requesterID)
	case "info-roblox":
		b.handleInfo(ctx, session, interaction, logger, requesterID, optionString(data.Options, "roblox_username"))
	case "verify-stats":
		b.handleStats(ctx, session, interaction, logger, optionString(data.Options, "period"))
	default:
		b.respondEmbed(session, interaction, b.errorEmbed("Unknown command."), true)
	}
}

func (b *Bot) handleSubmit(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, logger *zap.Logger, requesterID, username string, update bool) {
	if ok, wait := b.cooldown.Allow(requesterID, time.Now()); !ok {
		b.respondEmbed(session, interaction, b.warningEmbed("Slow down",
			fmt.Sprintf("You have made too many verification requests. Try again in %s.", wait.Round(time.Second))), true)
		return
	}
	if err := b.deferEphemeral(session, interaction); err != nil {
		logger.Warn("defer failed", zap.Error(err))
		return
	}

	var (
		request verification.Request
		err     error
	)
	if update {
		request, err = b.service.UpdateVerification(ctx, requesterID, username)
	} else {
		request, err = b.service.RequestVerification(ctx, requesterID, username)
	}

	switch {
	case errors.Is(err, verification.ErrNotFound):
		b.followupEmbed(session, interaction, b.errorEmbed(
			fmt.Sprintf("Could not find Roblox user **%s**. Please check the spelling and try again.", username)), logger)
	case errors.Is(err, verification.ErrNoBinding):
		b.followupEmbed(session, interaction, b.errorEmbed("You are not verified yet. Please use `/verify` first."), logger)
	case err != nil:
		logger.Error("verification request failed", zap.Error(err))
		b.followupEmbed(session, interaction, b.errorEmbed("Something went wrong while saving your request. Please try again later."), logger)
	default:
		logger.Info("verification code issued",
			zap.String("account_id", request.Resolution.AccountID),
			zap.String("via", request.Resolution.Via),
		)
		b.followupEmbed(session, interaction, b.instructionsEmbed(request), logger)
	}
}

func (b *Bot) handleConfirm(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, logger *zap.Logger, requesterID string) {
	if err := b.deferEphemeral(session, interaction); err != nil {
		logger.Warn("defer failed", zap.Error(err))
		return
	}

	result, err := b.service.ConfirmVerification(ctx, requesterID)
	if err != nil {
		logger.Error("verification confirm failed", zap.Error(err))
		b.followupEmbed(session, interaction, b.errorEmbed("Something went wrong while checking your code. Please try again later."), logger)
		return
	}

	logger.Info("verification confirm", zap.String("outcome", result.Outcome.String()), zap.String("via", result.Via))
	switch result.Outcome {
	case verification.OutcomeVerified:
		notes := b.applyVerifiedEffects(session, interaction.GuildID, requesterID, result.Binding, logger)
		fields := b.groupFields(ctx, result.Binding.ExternalAccountID, logger)
		if len(notes) > 0 {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Notes", Value: strings.Join(notes, "\n"), Inline: false})
		}
		b.followupEmbed(session, interaction, b.commandEmbed("Verified",
			fmt.Sprintf("You are now verified as **%s**.", result.Binding.ClaimedUsername),
			b.cfg.Notifications.EmbedColors.Success, fields), logger)
	case verification.OutcomeCodeNotFound:
		b.followupEmbed(session, interaction, b.warningEmbed("Code not found",
			fmt.Sprintf("Could not find `%s` in the About section of your Roblox profile. Save your profile and run `/verify-confirm` again.", result.Binding.IssuedCode)), logger)
	case verification.OutcomeAccountFetchFailed:
		b.followupEmbed(session, interaction, b.warningEmbed("Roblox unavailable",
			"Could not reach Roblox right now. Please try again later."), logger)
	default:
		b.followupEmbed(session, interaction, b.errorEmbed("No pending verification. Please use `/verify` first."), logger)
	}
}

// applyVerifiedEffects grants the verified role and syncs the nickname. It
// returns notes for the effects that could not be applied.
func (b *Bot) applyVerifiedEffects(session *discordgo.Session, guildID, userID string, binding storage.Binding, logger *zap.Logger) []string {
	if guildID == "" {
		return nil
	}

	var notes []string
	if roleID := b.cfg.Verification.VerifiedRoleID; roleID != "" {
		if err := session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
			logger.Warn("verified role grant failed", zap.String("role_id", roleID), zap.Error(err))
			notes = append(notes, "I could not give you the verified role. Please contact a moderator.")
		}
	}
	if b.cfg.Verification.SyncNickname && binding.ClaimedUsername != "" {
		if err := session.GuildMemberNickname(guildID, userID, nickname(binding.ClaimedUsername)); err != nil {
			logger.Warn("nickname sync failed", zap.Error(err))
			notes = append(notes, "I could not change your nickname.")
		}
	}
	return notes
}

func (b *Bot) groupFields(ctx context.Context, accountID string, logger *zap.Logger) []*discordgo.MessageEmbedField {
	var fields []*discordgo.MessageEmbedField
	if groupID := b.cfg.Verification.GroupID; groupID != "" && accountID != "" {
		member, err := b.directory.InGroup(ctx, accountID, groupID)
		switch {
		case err != nil:
			logger.Debug("group membership check failed", zap.Error(err))
		case member:
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Group", Value: "You are a member of our Roblox group.", Inline: false})
		default:
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Group", Value: "You are not in our Roblox group yet.", Inline: false})
		}
	}
	if url := b.cfg.Verification.GroupURL; url != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Join the group", Value: url, Inline: false})
	}
	return fields
}

func (b *Bot) handleInfo(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, logger *zap.Logger, requesterID, username string) {
	if err := b.deferEphemeral(session, interaction); err != nil {
		logger.Warn("defer failed", zap.Error(err))
		return
	}

	resolution, err := b.service.Resolver().Resolve(ctx, username)
	if err != nil {
		b.followupEmbed(session, interaction, b.errorEmbed(
			fmt.Sprintf("Could not find Roblox user **%s**.", username)), logger)
		return
	}
	b.auditInfoOverride(ctx, logger, requesterID, username, resolution)

	profile, ok := b.profiles.Get(resolution.AccountID)
	if !ok {
		profile, err = b.directory.FetchProfile(ctx, resolution.AccountID)
		if err != nil {
			logger.Warn("profile fetch failed", zap.String("account_id", resolution.AccountID), zap.Error(err))
			b.followupEmbed(session, interaction, b.warningEmbed("Roblox unavailable",
				"Could not load that profile right now. Please try again later."), logger)
			return
		}
		b.profiles.Add(resolution.AccountID, profile)
	}

	b.followupEmbed(session, interaction, b.infoEmbed(resolution, profile), logger)
}

func (b *Bot) auditInfoOverride(ctx context.Context, logger *zap.Logger, requesterID, username string, resolution verification.Resolution) {
	if !resolution.Overridden() {
		return
	}
	logger.Warn("info lookup resolved through forced override", zap.String("account_id", resolution.AccountID))
	if b.audit != nil {
		b.audit.Log(ctx, audit.LevelWarn, requesterID, verification.EventPolicyOverride,
			fmt.Sprintf("stage=info username=%s account_id=%s", username, resolution.AccountID))
	}
}

// infoEmbed renders a profile for /info-roblox. Profiles reached through the
// forced override belong to a test identity and say so.
func (b *Bot) infoEmbed(resolution verification.Resolution, profile roblox.Profile) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Username", Value: fallback(profile.Name, resolution.Username), Inline: true},
		{Name: "Display name", Value: fallback(profile.DisplayName, "-"), Inline: true},
		{Name: "User ID", Value: resolution.AccountID, Inline: true},
	}
	if !profile.Created.IsZero() {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Joined", Value: profile.Created.Format("2006-01-02"), Inline: true})
	}
	if profile.IsBanned {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Status", Value: "Banned", Inline: true})
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "About", Value: truncate(fallback(profile.Description, "-"), maxFieldValue), Inline: false})

	if resolution.Overridden() {
		fields = append([]*discordgo.MessageEmbedField{{
			Name:   "Note",
			Value:  fmt.Sprintf("Forced override: **%s** was not found, this is a test identity.", resolution.Username),
			Inline: false,
		}}, fields...)
		return b.commandEmbed("Roblox user (test identity)", profileURL(resolution.AccountID), b.cfg.Notifications.EmbedColors.Warning, fields)
	}
	return b.commandEmbed("Roblox user", profileURL(resolution.AccountID), b.cfg.Notifications.EmbedColors.Info, fields)
}

func (b *Bot) handleStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, logger *zap.Logger, period string) {
	start := time.Now().Add(-24 * time.Hour)
	if period == "week" {
		start = time.Now().Add(-7 * 24 * time.Hour)
	}
	report, err := b.analytics.Report(ctx, start)
	if err != nil {
		logger.Error("report failed", zap.Error(err))
		b.respondEmbed(session, interaction, b.errorEmbed("Could not build the report."), true)
		return
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Total", Value: fmt.Sprintf("%d", report.Total), Inline: true},
		{Name: "INFO", Value: fmt.Sprintf("%d", report.ByLevel[audit.LevelInfo]), Inline: true},
		{Name: "WARN", Value: fmt.Sprintf("%d", report.ByLevel[audit.LevelWarn]), Inline: true},
		{Name: "CRIT", Value: fmt.Sprintf("%d", report.ByLevel[audit.LevelCrit]), Inline: true},
		{Name: "Policy overrides", Value: fmt.Sprintf("%d", report.Overrides), Inline: true},
		{Name: "Events", Value: truncate(formatEventCounts(report.ByEvent), maxFieldValue), Inline: false},
	}
	logger.Info("verification report", zap.String("summary", formatReport(report)))
	b.respondEmbed(session, interaction, b.commandEmbed("Verification report",
		fmt.Sprintf("Activity since %s", start.Format(time.RFC1123)), b.cfg.Notifications.EmbedColors.Info, fields), true)
}

func (b *Bot) instructionsEmbed(request verification.Request) *discordgo.MessageEmbed {
	steps := strings.Join([]string{
		"1. Open your Roblox profile and edit the **About** section.",
		fmt.Sprintf("2. Paste this code anywhere in it: `%s`", request.Code),
		"3. Save your profile.",
		"4. Run `/verify-confirm` here.",
	}, "\n")
	fields := []*discordgo.MessageEmbedField{
		{Name: "Roblox account", Value: fmt.Sprintf("%s (%s)", request.Resolution.Username, request.Resolution.AccountID), Inline: true},
		{Name: "Code", Value: "`" + request.Code + "`", Inline: true},
		{Name: "Profile", Value: profileURL(request.Resolution.AccountID), Inline: false},
	}
	return b.commandEmbed("Verify your Roblox account", steps, b.cfg.Notifications.EmbedColors.Info, fields)
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) errorEmbed(message string) *discordgo.MessageEmbed {
	return b.commandEmbed("Verification", message, b.cfg.Notifications.EmbedColors.Error, nil)
}

func (b *Bot) warningEmbed(title, message string) *discordgo.MessageEmbed {
	return b.commandEmbed(title, message, b.cfg.Notifications.EmbedColors.Warning, nil)
}

func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, option := range options {
		if option != nil && option.Name == name && option.Type == discordgo.ApplicationCommandOptionString {
			return strings.TrimSpace(option.StringValue())
		}
	}
	return ""
}

func profileURL(accountID string) string {
	return "https://www.roblox.com/users/" + accountID + "/profile"
}

func nickname(username string) string {
	return truncate(username, maxNickname)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func fallback(value, alt string) string {
	if strings.TrimSpace(value) == "" {
		return alt
	}
	return value
}
