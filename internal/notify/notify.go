// Package notify announces emitted listings and sweep summaries.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/pkg/telegram"
)

// Notifier receives pipeline events. Implementations must tolerate being
// called concurrently.
type Notifier interface {
	ListingEmitted(ctx context.Context, l *model.CandidateListing)
	SweepFinished(ctx context.Context, sweep *model.Sweep)
	QuotaExhausted(ctx context.Context, capacity int)
}

// LogNotifier writes events to the structured log. It is the default when
// no Telegram chat is configured.
type LogNotifier struct{}

func (LogNotifier) ListingEmitted(_ context.Context, l *model.CandidateListing) {
	zap.L().Info("listing emitted",
		zap.String("external_id", l.ExternalID),
		zap.Int64("price", l.Price),
		zap.String("district", l.District),
		zap.String("link", l.Link),
	)
}

func (LogNotifier) SweepFinished(_ context.Context, sweep *model.Sweep) {
	zap.L().Info("sweep finished",
		zap.String("sweep_id", sweep.ID),
		zap.Int("pages", sweep.Stats.PagesScanned),
		zap.Int("emitted", sweep.Stats.Emitted),
		zap.Int("duplicates", sweep.Stats.Duplicates),
		zap.Int("rejected", sweep.Stats.Rejected),
		zap.Int("quota_remaining", sweep.Stats.QuotaRemaining),
	)
}

func (LogNotifier) QuotaExhausted(_ context.Context, capacity int) {
	zap.L().Warn("daily quota exhausted", zap.Int("capacity", capacity))
}

// TelegramNotifier pushes events into a Telegram chat. Send failures are
// logged and swallowed: notification is best-effort and never fails a sweep.
type TelegramNotifier struct {
	client telegram.Client
	chatID int64
}

// NewTelegram creates a notifier for the given chat.
func NewTelegram(client telegram.Client, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{client: client, chatID: chatID}
}

func (n *TelegramNotifier) ListingEmitted(ctx context.Context, l *model.CandidateListing) {
	if err := n.client.SendMessage(ctx, n.chatID, FormatListing(l)); err != nil {
		zap.L().Warn("telegram notify failed", zap.String("external_id", l.ExternalID), zap.Error(err))
	}
}

func (n *TelegramNotifier) SweepFinished(ctx context.Context, sweep *model.Sweep) {
	if err := n.client.SendMessage(ctx, n.chatID, FormatSweep(sweep)); err != nil {
		zap.L().Warn("telegram sweep summary failed", zap.String("sweep_id", sweep.ID), zap.Error(err))
	}
}

func (n *TelegramNotifier) QuotaExhausted(ctx context.Context, capacity int) {
	if err := n.client.SendMessage(ctx, n.chatID, FormatQuotaExhausted(capacity)); err != nil {
		zap.L().Warn("telegram quota notice failed", zap.Error(err))
	}
}

// FormatListing renders one listing as a Telegram HTML message.
func FormatListing(l *model.CandidateListing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s ₽</b>", groupDigits(l.Price))
	if l.PricePerArea > 0 {
		fmt.Fprintf(&b, " (%s ₽/м²)", groupDigits(l.PricePerArea))
	}
	b.WriteString("\n")

	if l.Rooms != model.RoomsUnknown {
		fmt.Fprintf(&b, "%d-комн, ", l.Rooms)
	}
	fmt.Fprintf(&b, "%.1f м²", l.AreaTotal)
	if l.Floor > 0 && l.FloorTotal > 0 {
		fmt.Fprintf(&b, ", %d/%d этаж", l.Floor, l.FloorTotal)
	}
	b.WriteString("\n")

	if l.District != "" {
		b.WriteString(l.District)
		b.WriteString("\n")
	}
	if l.AddressText != "" {
		b.WriteString(l.AddressText)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, `<a href="%s">Открыть на Cian</a>`, l.Link)
	return b.String()
}

// FormatQuotaExhausted renders the daily-cap notice.
func FormatQuotaExhausted(capacity int) string {
	return fmt.Sprintf("Дневной лимит исчерпан: %d/%d. Новые объявления пойдут завтра.", capacity, capacity)
}

// FormatSweep renders a sweep summary.
func FormatSweep(sweep *model.Sweep) string {
	s := sweep.Stats
	return fmt.Sprintf(
		"Обход завершён: страниц %d, карточек %d, новых %d, дублей %d, отклонено %d, квота %d",
		s.PagesScanned, s.CardsSeen, s.Emitted, s.Duplicates, s.Rejected, s.QuotaRemaining,
	)
}

// groupDigits formats an integer with thin spaces between thousands.
func groupDigits(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
