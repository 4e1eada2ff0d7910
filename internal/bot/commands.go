package bot

import "github.com/bwmarrin/discordgo"

func (b *Bot) commands() []*discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	guildOnly := false

	return []*discordgo.ApplicationCommand{
		{
			Name:         "verify",
			Description:  "Link your Roblox account",
			DMPermission: &guildOnly,
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Lier votre compte Roblox",
				discordgo.EnglishUS: "Link your Roblox account",
				discordgo.SpanishES: "Vincular tu cuenta de Roblox",
			},
			Options: []*discordgo.ApplicationCommandOption{usernameOption()},
		},
		{
			Name:         "verify-confirm",
			Description:  "Confirm the code placed in your Roblox profile",
			DMPermission: &guildOnly,
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Confirmer le code ajoute a votre profil Roblox",
				discordgo.EnglishUS: "Confirm the code placed in your Roblox profile",
				discordgo.SpanishES: "Confirmar el codigo de tu perfil de Roblox",
			},
		},
		{
			Name:         "update",
			Description:  "Switch your verification to another Roblox account",
			DMPermission: &guildOnly,
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Changer de compte Roblox verifie",
				discordgo.EnglishUS: "Switch your verification to another Roblox account",
				discordgo.SpanishES: "Cambiar tu cuenta de Roblox verificada",
			},
			Options: []*discordgo.ApplicationCommandOption{usernameOption()},
		},
		{
			Name:        "info-roblox",
			Description: "Show public information about a Roblox user",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Afficher les informations publiques d'un joueur Roblox",
				discordgo.EnglishUS: "Show public information about a Roblox user",
				discordgo.SpanishES: "Mostrar informacion publica de un usuario de Roblox",
			},
			Options: []*discordgo.ApplicationCommandOption{usernameOption()},
		},
		{
			Name:                     "verify-stats",
			Description:              "Verification activity report",
			DefaultMemberPermissions: &adminOnly,
			DMPermission:             &guildOnly,
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Rapport d'activite de verification",
				discordgo.EnglishUS: "Verification activity report",
				discordgo.SpanishES: "Informe de actividad de verificacion",
			},
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "day or week",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
					},
				},
			},
		},
	}
}

func usernameOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "roblox_username",
		Description: "Roblox username",
		DescriptionLocalizations: map[discordgo.Locale]string{
			discordgo.French:    "Nom d'utilisateur Roblox",
			discordgo.EnglishUS: "Roblox username",
			discordgo.SpanishES: "Nombre de usuario de Roblox",
		},
		Required: true,
	}
}

// registerCommands syncs the command set. With a guild id the commands are
// scoped to that guild, otherwise they are global.
func (b *Bot) registerCommands() error {
	commands := b.commands()
	appID := b.session.State.User.ID
	scope := b.cfg.GuildID

	existing, err := b.session.ApplicationCommands(appID, scope)
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, scope, cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, scope, current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, scope, cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, scope, cmd.ID)
	}
	return nil
}
