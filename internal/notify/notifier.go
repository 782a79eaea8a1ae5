// Package notify tells users about new matches through Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"

	"rallymatch/backend/internal/localization"
	"rallymatch/backend/internal/logging"
	"rallymatch/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers a plain text message to a Telegram chat.
type Sender interface {
	SendText(chatID int64, text string) error
}

// BotSender adapts a Telegram bot to Sender.
type BotSender struct {
	API *tgbotapi.BotAPI
}

func NewBotSender(token string) (*BotSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &BotSender{API: api}, nil
}

func (b *BotSender) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.API.Send(msg)
	return err
}

// ProfileLookup loads participant profiles.
type ProfileLookup interface {
	GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error)
}

type Notifier struct {
	sender   Sender
	profiles ProfileLookup
	loc      *localization.Localizer
	log      logging.Logger
}

func NewNotifier(sender Sender, profiles ProfileLookup, loc *localization.Localizer, log logging.Logger) *Notifier {
	if log == nil {
		log = logging.Nop()
	}
	return &Notifier{sender: sender, profiles: profiles, loc: loc, log: log}
}

// SessionCreated fits session.WithOnCreated. Delivery runs in the background
// so a slow Telegram API never holds up session resolution.
func (n *Notifier) SessionCreated(ctx context.Context, cs models.ChatSession) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := n.Notify(ctx, cs); err != nil {
			n.log.Warn(ctx, "match notification failed", "session", cs.ID, "error", err)
		}
	}()
}

// Notify messages every participant of cs that linked a Telegram chat.
func (n *Notifier) Notify(ctx context.Context, cs models.ChatSession) error {
	ids := cs.Participants()
	profiles, err := n.profiles.GetProfiles(ctx, ids[:])
	if err != nil {
		return err
	}
	byID := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	var errs []error
	for _, id := range ids {
		p, ok := byID[id]
		if !ok || p.TelegramChatID == 0 {
			continue
		}
		text := n.loc.GetString(p.Language, "match_found_unknown")
		if peer, ok := byID[cs.OtherParticipant(id)]; ok && peer.Name != "" {
			text = n.loc.Format(p.Language, "match_found", peer.Name)
		}
		if err := n.sender.SendText(p.TelegramChatID, text); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", id, err))
			continue
		}
		n.log.Debug(ctx, "match notification sent", "user", id, "session", cs.ID)
	}
	return errors.Join(errs...)
}
