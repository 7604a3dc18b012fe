package bot

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Replier is the subset of the Discord REST API command handlers use to
// respond. *discordgo.Session satisfies it; tests substitute recorders.
type Replier interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Compile-time assertion: *discordgo.Session satisfies Replier.
var _ Replier = (*discordgo.Session)(nil)

// Context carries everything a command handler needs for one invocation.
type Context struct {
	Replier Replier
	Message *discordgo.MessageCreate
	Args    []string
	Logger  *slog.Logger
}

// Reply sends content to the channel the command arrived on.
func (c *Context) Reply(content string) error {
	_, err := c.Replier.ChannelMessageSend(c.Message.ChannelID, content)
	return err
}

// HandlerFunc executes one command invocation.
type HandlerFunc func(ctx *Context) error

// Command is a named prefix command.
type Command struct {
	Name        string
	Description string
	Handler     HandlerFunc
}

// Registry maps command names to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds commands to the registry, replacing any existing command
// with the same name. Names are matched case-insensitively.
func (r *Registry) Register(cmds ...Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cmd := range cmds {
		r.commands[strings.ToLower(cmd.Name)] = cmd
	}
}

// Lookup returns the command registered under name, if any.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// ParseCommand splits a message into a command name and arguments. It returns
// ok=false when the message does not start with the prefix or carries nothing
// after it.
func ParseCommand(prefix, content string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// BasicCommands returns the core command set.
func BasicCommands() []Command {
	return []Command{
		{
			Name:        "ping",
			Description: "Responds with ¡Pong! to confirm the bot is alive.",
			Handler: func(ctx *Context) error {
				return ctx.Reply("¡Pong!")
			},
		},
	}
}
