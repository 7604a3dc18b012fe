package guild

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// PermissionSource computes the bot's effective permissions in a channel.
// *discordgo.Session satisfies it.
type PermissionSource interface {
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

var _ PermissionSource = (*discordgo.Session)(nil)

// LogChannelPermissions emits best-effort startup diagnostics for a resolved
// guild: one DEBUG record per text channel with the view/read-history/send
// flags, and a single INFO summary. Channels whose permissions cannot be
// computed are skipped; diagnostics never fail startup.
func LogChannelPermissions(src PermissionSource, logger *slog.Logger, g *discordgo.Guild, botUserID string) {
	if logger == nil {
		logger = slog.Default()
	}

	inspected := 0
	for _, ch := range g.Channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		perms, err := src.UserChannelPermissions(botUserID, ch.ID)
		if err != nil {
			logger.Debug("skipping channel permission check", "channel", ch.Name, "error", err)
			continue
		}
		inspected++
		logger.Debug("channel permissions",
			"channel", ch.Name,
			"view", perms&discordgo.PermissionViewChannel != 0,
			"readHistory", perms&discordgo.PermissionReadMessageHistory != 0,
			"send", perms&discordgo.PermissionSendMessages != 0,
		)
	}

	logger.Info("guild diagnostics complete", "guild", g.Name, "guildID", g.ID, "textChannels", inspected)
}
