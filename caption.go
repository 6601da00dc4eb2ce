package main

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// captionFor decides whether msg gets a reply and with which cover text.
// The photo caption is used as the text; without one a random phrase is
// picked.
func (bot *Bot) captionFor(msg *tgbotapi.Message) (string, bool) {
	group := bot.cfg.Bot.Group
	phrase := group.ActivationPhrase

	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		if !group.Enabled {
			return "", false
		}

		if phrase != "" && phrase != msg.Caption {
			if bot.float64() > group.ActivationProbability {
				return "", false
			}
		}
	}

	text := strings.TrimSpace(msg.Caption)
	if text != "" && text != phrase {
		return text, true
	}

	phrases := bot.cfg.Bot.Phrases
	if len(phrases) == 0 {
		bot.logger.Debug("no caption and no phrases configured")
		return "", false
	}
	return phrases[bot.intn(len(phrases))], true
}

func (bot *Bot) float64() float64 {
	bot.randMu.Lock()
	defer bot.randMu.Unlock()
	return bot.rand.Float64()
}

func (bot *Bot) intn(n int) int {
	bot.randMu.Lock()
	defer bot.randMu.Unlock()
	return bot.rand.Intn(n)
}
