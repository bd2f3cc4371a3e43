package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quant_bot/internal/models"
	"quant_bot/pkg/logger"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// PositionSource — снимок позиций одного счёта для команды /positions.
type PositionSource interface {
	Account() string
	Snapshot() map[string]models.Position
}

// Telegram — пассивный нотифайер + одна команда /positions.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64

	mu      sync.Mutex
	sources []PositionSource
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

// RegisterSource вызывается контроллерами при старте.
func (t *Telegram) RegisterSource(src PositionSource) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.sources = append(t.sources, src)
	t.mu.Unlock()
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// /positions — открытые позиции по всем счетам
func (t *Telegram) handlePositions() {
	t.mu.Lock()
	sources := append([]PositionSource(nil), t.sources...)
	t.mu.Unlock()

	var b strings.Builder
	total := 0
	for _, src := range sources {
		snap := src.Snapshot()
		if len(snap) == 0 {
			continue
		}
		fmt.Fprintf(&b, "📊 %s:\n", src.Account())
		syms := make([]string, 0, len(snap))
		for s := range snap {
			syms = append(syms, s)
		}
		sort.Strings(syms)
		for _, s := range syms {
			p := snap[s]
			fmt.Fprintf(&b, "- %s [%s] qty=%.4f @ %.2f sl=%.2f tp=%.2f\n",
				p.Symbol, p.Side, p.Qty, p.Entry, p.SL, p.TP)
			total++
		}
	}
	if total == 0 {
		t.Send("📭 Открытых позиций нет")
		return
	}
	t.Send(b.String())
}

// Start: long-polling только для команд.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message != nil && upd.Message.Chat != nil &&
					upd.Message.Chat.ID == t.chatID && upd.Message.IsCommand() {

					switch upd.Message.Command() {
					case "positions":
						go t.handlePositions()
					}
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {}

// Stdout — заглушка без токена, пишет в лог.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("[NOTIFY] %s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { s.Send(fmt.Sprintf(format, args...)) }
