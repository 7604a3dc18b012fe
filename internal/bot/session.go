// Package bot wraps a discordgo.Session with delibot's gateway behavior:
// prefix command dispatch on incoming messages and guild resolution
// diagnostics on ready.
package bot

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/dopelDev/delibot/internal/guild"
)

// Session wraps a discordgo.Session, routing incoming guild messages through
// the command registry and running startup diagnostics when the gateway
// reports ready.
type Session struct {
	dg       *discordgo.Session
	prefix   string
	guildID  string
	registry *Registry
	logger   *slog.Logger
}

// New wraps an existing *discordgo.Session, registering ready and message
// event handlers, configuring the gateway intents prefix commands require,
// and installing the basic command set. An empty guildID disables guild
// resolution on ready. A nil logger defaults to slog.Default().
//
// Intents enabled:
//   - IntentGuilds
//   - IntentGuildMessages
//   - IntentMessageContent
func New(dg *discordgo.Session, prefix, guildID string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	registry := NewRegistry()
	registry.Register(BasicCommands()...)

	s := &Session{
		dg:       dg,
		prefix:   prefix,
		guildID:  guildID,
		registry: registry,
		logger:   logger,
	}

	dg.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent

	dg.AddHandler(s.onReady)
	dg.AddHandler(s.onMessageCreate)

	return s
}

// Registry returns the command registry so callers can register additional
// commands before opening the connection.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Open establishes the WebSocket connection to the Discord gateway.
func (s *Session) Open() error {
	return s.dg.Open()
}

// Close gracefully closes the WebSocket connection to the Discord gateway.
// It is safe to call Close multiple times, including after a failed Open.
func (s *Session) Close() error {
	return s.dg.Close()
}

// onReady is called when the Discord gateway confirms the bot is connected.
// It logs the connected account and, when a guild is configured, resolves it
// and emits channel permission diagnostics.
func (s *Session) onReady(dg *discordgo.Session, event *discordgo.Ready) {
	s.logger.Info("connected",
		"username", event.User.Username,
		"discriminator", event.User.Discriminator,
	)

	if s.guildID == "" {
		return
	}

	g, err := guild.Resolve(guild.WrapSession(dg), s.logger, s.guildID)
	if err != nil {
		// An event handler has no caller to propagate to; ERROR is the
		// closest thing to re-raising here.
		s.logger.Error("guild resolution failed", "guildID", s.guildID, "error", err)
		return
	}
	if g == nil {
		s.logger.Warn("configured guild could not be resolved", "guildID", s.guildID)
		return
	}

	s.logger.Info("connected in server", "guild", g.Name, "guildID", g.ID)
	guild.LogChannelPermissions(dg, s.logger, g, event.User.ID)
}

// onMessageCreate handles incoming Discord message events. It filters out bot
// authors and non-command messages before dispatching to the registry.
// Unknown commands are ignored so other bots sharing the prefix can coexist.
func (s *Session) onMessageCreate(dg *discordgo.Session, event *discordgo.MessageCreate) {
	if event.Author == nil || event.Author.Bot {
		return
	}

	name, args, ok := ParseCommand(s.prefix, event.Content)
	if !ok {
		return
	}

	cmd, ok := s.registry.Lookup(name)
	if !ok {
		s.logger.Debug("unknown command", "command", name, "author", event.Author.Username)
		return
	}

	ctx := &Context{
		Replier: dg,
		Message: event,
		Args:    args,
		Logger:  s.logger,
	}
	if err := cmd.Handler(ctx); err != nil {
		s.logger.Warn("command failed", "command", name, "channelID", event.ChannelID, "error", err)
	}
}
