package notifier

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"boxradar/internal/domain/entity"
	"boxradar/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

type TelegramBot struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegramBot(token string, chatID int64) (*TelegramBot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &TelegramBot{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// Run обрабатывает найденные выгодные объявления из канала.
func (b *TelegramBot) Run(ctx context.Context, opportunities <-chan entity.Opportunity) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case opp, ok := <-opportunities:
			if !ok {
				return nil
			}
			if err := b.SendOpportunity(ctx, opp); err != nil {
				logger(ctx).Error("failed to send opportunity", "error", err)
			}
		}
	}
}

func (b *TelegramBot) SendOpportunity(ctx context.Context, opp entity.Opportunity) error {
	listing, e := opp.Listing, opp.Enrichment

	text := fmt.Sprintf(
		"🔥 <b>OPPORTUNITY</b>\n\n"+
			"🏷 <b>%s</b>\n"+
			"💰 <b>Price:</b> %.0f €\n"+
			"📍 <b>City:</b> %s\n"+
			"📊 <b>Edge score:</b> %.1f\n"+
			"📈 <b>Gross yield:</b> %s",
		listing.Title,
		listing.Price,
		orDash(listing.City),
		floatOrZero(e.EdgeScore),
		formatYield(e.GrossYield),
	)

	if listing.URL != nil {
		text += fmt.Sprintf("\n\n🔗 <a href=%q>Listing</a>", *listing.URL)
	}

	msg := tu.Message(
		tu.ID(b.chatID),
		text,
	).WithParseMode(telego.ModeHTML)

	if _, err := b.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// SendText отправляет простое текстовое сообщение.
func (b *TelegramBot) SendText(ctx context.Context, text string) error {
	msg := tu.Message(tu.ID(b.chatID), text)

	_, err := b.bot.SendMessage(ctx, msg)
	return err
}

func orDash(s *string) string {
	if s == nil {
		return "—"
	}
	return *s
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func formatYield(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v)
}
