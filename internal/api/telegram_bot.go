// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abelzeko/weather-bot/internal/entities"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// CommandHandler produces the reply for a single command
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd entities.Command) string
}

// Sender is the subset of tgbotapi.BotAPI used to reply
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// MenuCommand is a command shown in the Telegram client menu
type MenuCommand struct {
	Name        string
	Description string
}

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	sender  Sender
	handler CommandHandler
	logger  *slog.Logger
}

// NewTelegramBot creates a new Telegram bot handler.
// apiEndpoint is a format string taking the token and the method name.
func NewTelegramBot(botToken, apiEndpoint string, handler CommandHandler, logger *slog.Logger) (*TelegramBot, error) {
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(botToken, apiEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		bot:     bot,
		sender:  bot,
		handler: handler,
		logger:  logger,
	}, nil
}

// SetCommands publishes the command menu shown by Telegram clients
func (t *TelegramBot) SetCommands(commands []MenuCommand) error {
	botCommands := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		botCommands = append(botCommands, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	if _, err := t.sender.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	return nil
}

// Start listens for updates until ctx is cancelled.
// Updates are handled one at a time.
func (t *TelegramBot) Start(ctx context.Context) {
	t.logger.Info("authorized on telegram", "account", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	t.logger.Info("bot is now listening for messages")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.logger.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate processes a Telegram update and sends exactly one reply per message
func (t *TelegramBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}

	cmd := commandFromMessage(message)
	t.logger.Debug("received message",
		"user", message.From.UserName,
		"user_id", message.From.ID,
		"command", cmd.Name)

	msg := tgbotapi.NewMessage(message.Chat.ID, t.handler.HandleCommand(ctx, cmd))
	if _, err := t.sender.Send(msg); err != nil {
		t.logger.Error("error sending message", "chat_id", message.Chat.ID, "error", err)
	}
}

// commandFromMessage converts a message into a Command. Plain text gets an
// empty command name so that it falls through to the catch-all reply.
func commandFromMessage(message *tgbotapi.Message) entities.Command {
	cmd := entities.Command{
		ChatID:      message.Chat.ID,
		UserID:      message.From.ID,
		DisplayName: displayName(message.From),
	}
	if message.IsCommand() {
		cmd.Name = message.Command()
		cmd.Args = strings.Fields(message.CommandArguments())
	}
	return cmd
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
