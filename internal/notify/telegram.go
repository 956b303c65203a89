// Package notify provides the Telegram surface: trade alerts pushed to a
// configured chat, plus a command listener that drives the spell engine.
package notify

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/spellbot/internal/engine"
	"github.com/web3guy0/spellbot/internal/feed"
)

// Bot wraps the Telegram API around a trading engine
type Bot struct {
	api    *tgbotapi.BotAPI
	engine *engine.Engine
	chatID int64
	stopCh chan struct{}
}

// New connects to Telegram. chatID is the chat that receives trade alerts;
// zero disables them but commands still work from any chat.
func New(token string, chatID int64, eng *engine.Engine) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")

	return &Bot{
		api:    api,
		engine: eng,
		chatID: chatID,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins the command listener
func (b *Bot) Start() {
	go b.listenForCommands()

	if b.chatID != 0 {
		b.sendMarkdown(b.chatID, "🟢 *Spellbot Online*\n\nPaper trading account ready. Use /help for commands.")
	}
}

// Stop stops the listener
func (b *Bot) Stop() {
	close(b.stopCh)
}

// NotifyTrade pushes one executed-trade alert to the configured chat
func (b *Bot) NotifyTrade(action, symbol string, quantity, price decimal.Decimal) {
	if b.chatID == 0 {
		return
	}

	var emoji string
	switch action {
	case "LONG":
		emoji = "🟢"
	case "SHORT":
		emoji = "🔴"
	default:
		emoji = "🛡️"
	}

	text := fmt.Sprintf(`%s *TRADE EXECUTED*

*Action:* %s
*Symbol:* %s
*Quantity:* %s
*Price:* $%s`,
		emoji,
		action,
		symbol,
		quantity.String(),
		price.StringFixed(2),
	)

	b.sendMarkdown(b.chatID, text)
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	log.Debug().
		Int64("chat_id", chatID).
		Str("text", msg.Text).
		Msg("Received message")

	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start":
		b.cmdStart(chatID)
	case "help":
		b.cmdHelp(chatID)
	case "cast":
		b.cmdCast(chatID, msg.CommandArguments())
	case "positions":
		b.cmdPositions(chatID, msg.CommandArguments())
	case "summary":
		b.cmdSummary(chatID)
	case "stats":
		b.cmdStats(chatID)
	case "limits":
		b.cmdLimits(chatID)
	case "activate":
		b.dispatchSimple(chatID, engine.CommandActivate)
	case "deactivate":
		b.dispatchSimple(chatID, engine.CommandDeactivate)
	default:
		b.sendText(chatID, "❓ Unknown command. Use /help for available commands.")
	}
}

// Commands

func (b *Bot) cmdStart(chatID int64) {
	text := `🪄 *Welcome to Spellbot!*

Your crypto paper trading account.

*What I do:*
• 🦌 Open simulated long positions
• 🐍 Open margined short positions
• 🛡️ Guard every trade with risk limits
• 💾 Persist everything across restarts

*Quick Start:*
1️⃣ /activate to wake the engine
2️⃣ /cast expecto-long btc 0.01 to go long
3️⃣ /summary to value the account

*Commands:*
/help - All commands
/cast - Cast a trading spell
/positions - Open positions
/summary - Account valuation

No real funds are ever at risk. 💪`

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdHelp(chatID int64) {
	text := fmt.Sprintf(`📚 *Spellbot Commands*

*🪄 Spells:*
/cast expecto-long <coin> <qty> - Open a long
/cast expecto-short <coin> <qty> - Open a short
/cast finite-incantatem <coin> - Close all positions
/activate, /deactivate - Engine state (lumos / nox)

*📊 Account:*
/positions [coin] - Open positions
/summary - Cash, value and P&L
/stats - Session statistics
/limits - Risk limits

*Supported coins:*
%s

Plain names also work: open-long,
open-short and close-all.`,
		strings.Join(feed.SupportedCoins(), ", "))

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdCast(chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.sendText(chatID, "⚠️ Usage: /cast <spell> <coin> [quantity]")
		return
	}

	cmd := engine.ParseCommand(fields[0])

	symbol, ok := feed.CoinID(fields[1])
	if !ok {
		b.sendText(chatID, fmt.Sprintf("❌ Unknown coin %q. Use /help for the supported list.", fields[1]))
		return
	}

	quantity := decimal.Zero
	if len(fields) >= 3 {
		q, err := decimal.NewFromString(fields[2])
		if err != nil {
			b.sendText(chatID, fmt.Sprintf("❌ Bad quantity %q", fields[2]))
			return
		}
		quantity = q
	}

	result := b.engine.Dispatch(cmd, symbol, quantity)
	if result.Success {
		b.sendText(chatID, result.Message)
	} else {
		b.sendText(chatID, fmt.Sprintf("❌ %s", result.Message))
	}
}

func (b *Bot) cmdPositions(chatID int64, args string) {
	symbol := ""
	if arg := strings.TrimSpace(args); arg != "" {
		if id, ok := feed.CoinID(arg); ok {
			symbol = id
		}
	}

	positions := b.engine.GetPositions(symbol)
	if len(positions) == 0 {
		b.sendText(chatID, "📊 No open positions.")
		return
	}

	text := fmt.Sprintf("📊 *Open Positions* (%d)\n\n", len(positions))
	for i, pos := range positions {
		if i >= 10 {
			text += fmt.Sprintf("\n_...and %d more_", len(positions)-10)
			break
		}

		var emoji string
		if pos.Side == "LONG" {
			emoji = "🟢"
		} else {
			emoji = "🔴"
		}

		text += fmt.Sprintf(`%s *%s %s*
├ Quantity: %s
├ Entry: $%s
└ Opened: %s

`,
			emoji, pos.Side, pos.Symbol,
			pos.Quantity.String(),
			pos.EntryPrice.StringFixed(2),
			pos.EntryTime.Format("Jan 2 15:04"),
		)
	}

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdSummary(chatID int64) {
	summary := b.engine.GetAccountSummary()

	var pnlEmoji string
	if summary.TotalPnL.IsPositive() {
		pnlEmoji = "🟢"
	} else if summary.TotalPnL.IsNegative() {
		pnlEmoji = "🔴"
	} else {
		pnlEmoji = "⚪"
	}

	engineStatus := "🔴 INACTIVE"
	if b.engine.Active() {
		engineStatus = "🟢 ACTIVE"
	}

	text := fmt.Sprintf(`💰 *Account Summary*

🤖 *Engine:* %s

*Valuation:*
├ Cash: $%s
├ Total Value: $%s
%s Total P&L: $%s (%s%%)
└ Open Positions: %d`,
		engineStatus,
		summary.Cash.StringFixed(2),
		summary.TotalValue.StringFixed(2),
		pnlEmoji,
		summary.TotalPnL.StringFixed(2),
		summary.TotalPnLPercent.StringFixed(2),
		summary.OpenPositions,
	)

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdStats(chatID int64) {
	stats := b.engine.GetSessionStats()

	text := fmt.Sprintf(`📈 *Session Statistics*

*Commands:*
├ Total: %d
├ Succeeded: %d
├ Failed: %d
└ Success Rate: %.1f%%

⏱️ Uptime: %s`,
		stats.TotalCommands,
		stats.Succeeded,
		stats.Failed,
		stats.SuccessRatePct,
		stats.Duration.Round(time.Second).String(),
	)

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdLimits(chatID int64) {
	limits := b.engine.GetRiskLimits()

	text := fmt.Sprintf(`🛡️ *Risk Limits*

├ Max Position Size: %s%%
├ Max Total Exposure: %s%%
├ Max Daily Loss: %s%%
└ Max Leverage: %sx

Per-symbol quantity and notional caps
apply on top of these.`,
		limits.MaxPositionSize.Mul(decimal.NewFromInt(100)).StringFixed(0),
		limits.MaxTotalExposure.Mul(decimal.NewFromInt(100)).StringFixed(0),
		limits.MaxDailyLoss.Mul(decimal.NewFromInt(100)).StringFixed(0),
		limits.MaxLeverage.String(),
	)

	b.sendMarkdown(chatID, text)
}

func (b *Bot) dispatchSimple(chatID int64, cmd engine.Command) {
	result := b.engine.Dispatch(cmd, "", decimal.Zero)
	b.sendText(chatID, result.Message)
}

// Helpers

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}
