// Command delibot is the entry point for the delibot Discord bot.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/dopelDev/delibot/internal/bot"
	"github.com/dopelDev/delibot/internal/config"
	"github.com/dopelDev/delibot/internal/logging"
)

const (
	defaultConfigPath = "delibot.yaml"
	dotenvPath        = "discord.env"
)

func main() {
	// Bootstrap logger for the window before the facility is configured.
	boot := log.New(os.Stderr, "delibot: ", log.LstdFlags)

	// 1. Load discord.env so file-based secrets reach the environment.
	if err := config.LoadDotenv(dotenvPath); err != nil {
		boot.Printf("warning: %v", err)
	}

	// 2. Load config and apply environment variable overrides.
	cfg := loadConfig(boot)
	config.ApplyEnvOverrides(cfg)

	// 3. Configure the logging facility. Failure here is fatal.
	facility := logging.New(logging.Options{
		Dir:   cfg.Logging.Dir,
		Level: cfg.Logging.Level,
	})
	if err := facility.Setup(); err != nil {
		boot.Fatalf("failed to configure logging: %v", err)
	}
	logger := facility.Logger("main")

	// 4. Validate config. A missing token is fatal.
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 5. Create the raw discordgo session.
	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Error("failed to create Discord session", "error", err)
		os.Exit(1)
	}

	// 6. Wrap it (registers event handlers, intents, and basic commands).
	session := bot.New(dg, cfg.Discord.Prefix, cfg.Discord.GuildID, facility.Logger("bot"))

	// 7. Open the gateway connection. Close is guaranteed on every exit
	// path from here on.
	logger.Info("starting delibot", "prefix", cfg.Discord.Prefix)
	if err := session.Open(); err != nil {
		_ = session.Close()
		logger.Error("failed to open Discord connection", "error", err)
		os.Exit(1)
	}

	// 8. Wait for SIGINT/SIGTERM.
	logger.Info("delibot is running; press CTRL-C to exit")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// 9. Close the gateway connection.
	logger.Info("shutting down")
	if err := session.Close(); err != nil {
		logger.Warn("Discord close error", "error", err)
	}
	logger.Info("delibot stopped")
}

// loadConfig attempts to read the config file from the path specified by
// DELIBOT_CONFIG_PATH or the default "delibot.yaml". If the file cannot be
// read, DefaultConfig is returned.
func loadConfig(logger *log.Logger) *config.Config {
	path := os.Getenv("DELIBOT_CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Printf("could not load config from %q (%v), using defaults", path, err)
		return config.DefaultConfig()
	}

	logger.Printf("loaded config from %q", path)
	return cfg
}
