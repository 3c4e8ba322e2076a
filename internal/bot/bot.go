package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/commands"
)

type Bot struct {
	session  *discordgo.Session
	commands *commands.Handler
	log      *zap.Logger
}

// NewSession creates the Discord session shared by the bot and its authorizer.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	session.StateEnabled = true
	return session, nil
}

func New(session *discordgo.Session, handler *commands.Handler, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	bot := &Bot{
		session:  session,
		commands: handler,
		log:      log,
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onInteractionCreate)

	return bot
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.log.Info("discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}
