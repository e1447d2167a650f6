// Package notify announces stage records to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/StageRank/internal/models"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a message whenever a run takes first place on its
// stage by time or by prompt length.
type TelegramNotifier struct {
	api    sender
	chatID int64
	log    *slog.Logger
}

func NewTelegramNotifier(api *tgbotapi.BotAPI, chatID int64, log *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{api: api, chatID: chatID, log: log}
}

func (n *TelegramNotifier) Notify(ctx context.Context, result models.RunResult) error {
	text := recordText(result)
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send record message: %w", err)
	}
	n.log.Info("stage record announced", "stage", result.Log.StageCode, "user_id", result.Log.UserID)
	return nil
}

func recordText(result models.RunResult) string {
	var records []string
	if result.Rank.RankByTime == 1 {
		records = append(records, fmt.Sprintf("fastest clear: %.2fs", float64(result.Log.ClearTimeMs)/1000))
	}
	if result.Rank.RankByTokens == 1 {
		records = append(records, fmt.Sprintf("shortest prompt: %d", result.Log.PromptLength))
	}
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New record on stage %s by %s\n", result.Log.StageCode, result.Log.UserID)
	for _, r := range records {
		b.WriteString("• ")
		b.WriteString(r)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Runs on this stage: %d", result.Rank.Total)
	return b.String()
}
