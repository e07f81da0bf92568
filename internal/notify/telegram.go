// Package notify delivers human-readable cycle summaries over Telegram.
package notify

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"rangekeeper/internal/rebalance"
)

// TelegramNotifier posts cycle summaries to a single chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramNotifier creates a notifier bound to a chat.
func NewTelegramNotifier(botToken string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	bot.Debug = false

	logger.Info("telegram notifier initialized", zap.String("bot_username", bot.Self.UserName))

	return &TelegramNotifier{api: bot, chatID: chatID, logger: logger}, nil
}

// NotifyCycle sends one message per completed cycle. Cycles where every
// position is healthy are reported in a single line.
func (n *TelegramNotifier) NotifyCycle(_ context.Context, result rebalance.CycleResult) error {
	msg := tgbotapi.NewMessage(n.chatID, formatCycleMessage(result))
	msg.ParseMode = "Markdown"

	if _, err := n.api.Send(msg); err != nil {
		n.logger.Error("send telegram message failed", zap.Int64("chat_id", n.chatID), zap.Error(err))
		return err
	}
	return nil
}

func formatCycleMessage(result rebalance.CycleResult) string {
	var b strings.Builder

	if len(result.Plans) == 0 {
		fmt.Fprintf(&b, "✅ %d position(s) evaluated, all in range", len(result.Evaluations))
	} else {
		fmt.Fprintf(&b, "⚠️ %d of %d position(s) need rebalancing", len(result.Plans), len(result.Evaluations))
		for _, plan := range result.Plans {
			e := plan.Evaluation
			fmt.Fprintf(&b, "\n\n*Position %s*\n%s\n", e.PositionID, e.Reason)
			fmt.Fprintf(&b, "Suggested ticks: [%d, %d]\n", e.SuggestedRange.TickLower, e.SuggestedRange.TickUpper)
			fmt.Fprintf(&b, "Redeploy: %s / %s (≈ $%.2f)", formatTokenAmount(plan.Amount0, plan.Decimals0), formatTokenAmount(plan.Amount1, plan.Decimals1), plan.UsdValue)
			if e.EstimatedAprImprovement > 0 {
				fmt.Fprintf(&b, "\nEstimated APR uplift: +%.1f%%", e.EstimatedAprImprovement*100)
			}
		}
	}

	for _, skipped := range result.Skipped {
		fmt.Fprintf(&b, "\n⏭ position %s skipped: %s", skipped.PositionID, skipped.Reason)
	}

	return b.String()
}

// formatTokenAmount renders a base-unit amount as a decimal string without
// the float formatting artifacts %f would introduce for large values.
func formatTokenAmount(value float64, decimals uint8) string {
	f := new(big.Float).SetFloat64(value)
	rat, _ := f.Rat(nil)
	if rat == nil {
		return "0"
	}
	if decimals > 0 {
		denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
		rat.Quo(rat, new(big.Rat).SetInt(denom))
	}
	text := rat.FloatString(6)
	return strings.TrimRight(strings.TrimRight(text, "0"), ".")
}

var _ rebalance.Notifier = (*TelegramNotifier)(nil)
