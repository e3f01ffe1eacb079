package telegram

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kurz4K/RZXInfoBot/internal/review"
)

func sendMessage(bot MessageSender, msg tgbotapi.Chattable) {
	if _, err := bot.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

func answerCallback(bot MessageSender, callbackID string) {
	if _, err := bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}
}

// formatAccountMessage renders one record for the checking screen: position,
// the account block, and the sorted/checked footer.
func formatAccountMessage(v *review.View) string {
	sorted := "Not Yet Sorted"
	if v.Label != "" {
		sorted = v.Label
	}
	checked := "No"
	if v.Checked {
		checked = "Yes"
	}
	return fmt.Sprintf("📄 %d / %d\n\n%s\n\n🏷️ Sorted: %s\n✅ Checked: %s",
		v.Index+1, v.Total, v.Record.FormatBlock(), sorted, checked)
}
