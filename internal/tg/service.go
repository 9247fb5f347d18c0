package tg

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/pvzzle/mintbot/internal/bus"
	"github.com/pvzzle/mintbot/internal/contract"
	"github.com/pvzzle/mintbot/internal/engine"
	"github.com/pvzzle/mintbot/internal/history"
	"github.com/pvzzle/mintbot/internal/prefs"
	"github.com/pvzzle/mintbot/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	cbMint     = "mint"
	cbHistory  = "history"
	cbWallets  = "wallets"
	cbSettings = "settings"

	cbSetContract = "set_contract"
	cbSetCount    = "set_count"
	cbClearPrefs  = "clear_prefs"
	cbBackToMain  = "back_main"
)

// MintDefaults are the process-wide mint parameters chats can override.
type MintDefaults struct {
	Contract common.Address
	Method   string
	ValueWei string
}

type Service struct {
	bot  *tgbot.Bot
	orch *engine.Orchestrator
	pool *wallet.Pool

	store    *history.Store
	prefs    *prefs.Store
	state    *StateStore
	defaults MintDefaults

	notifyCh chan bus.Notification
}

func NewService(
	b *tgbot.Bot,
	orch *engine.Orchestrator,
	pool *wallet.Pool,
	store *history.Store,
	prefStore *prefs.Store,
	defaults MintDefaults,
	notifyBuffer int,
) *Service {
	if notifyBuffer <= 0 {
		notifyBuffer = 64
	}
	s := &Service{
		bot:      b,
		orch:     orch,
		pool:     pool,
		store:    store,
		prefs:    prefStore,
		state:    NewStateStore(),
		defaults: defaults,
		notifyCh: make(chan bus.Notification, notifyBuffer),
	}
	s.registerHandlers()
	return s
}

func (s *Service) registerHandlers() {
	s.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, s.onStart)

	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbMint, tgbot.MatchTypeExact, s.onCbMint)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbHistory, tgbot.MatchTypeExact, s.onCbHistory)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbWallets, tgbot.MatchTypeExact, s.onCbWallets)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbSettings, tgbot.MatchTypeExact, s.onCbSettings)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbSetContract, tgbot.MatchTypeExact, s.onCbSetContract)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbSetCount, tgbot.MatchTypeExact, s.onCbSetCount)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbClearPrefs, tgbot.MatchTypeExact, s.onCbClearPrefs)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbBackToMain, tgbot.MatchTypeExact, s.onCbBackToMain)

	s.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypePrefix, s.onAnyText)
}

// StartNotifyLoop delivers batch results produced by background mints.
func (s *Service) StartNotifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.notifyCh:
			_, err := s.bot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: n.ChatID,
				Text:   n.Text,
			})
			if err != nil {
				log.Printf("[tg] send notify error: %v", err)
			}
		}
	}
}

func mainMenu() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Mint all", CallbackData: cbMint},
				{Text: "History", CallbackData: cbHistory},
			},
			{
				{Text: "Wallets", CallbackData: cbWallets},
				{Text: "Settings", CallbackData: cbSettings},
			},
		},
	}
}

func (s *Service) onStart(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	s.state.Set(chatID, StateIdle)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        "Hi! I mint NFTs from the managed wallet pool.\n\nPick an action:",
		ReplyMarkup: mainMenu(),
	})
}

func (s *Service) onCbMint(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateIdle)

	provider, err := s.providerFor(chatID)
	if err != nil {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   "Cannot mint: " + engine.TruncateError(err),
		})
		return
	}

	wallets := s.walletsFor(chatID)
	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text: fmt.Sprintf("🚀 Minting on %s with %d wallet(s). I'll report when every wallet is done.",
			shortenHex(provider.Address().Hex()), len(wallets)),
	})

	// Batches run to their own terminal outcome; the chat gets the
	// aggregate through the notify loop.
	go func() {
		res := s.orch.MintAll(ctx, wallets, provider, chatID)
		select {
		case s.notifyCh <- bus.Notification{ChatID: chatID, Text: FormatBatchResult(res)}:
		case <-ctx.Done():
		}
	}()
}

func (s *Service) onCbHistory(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}

	recs := s.store.Query("", 10)
	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   FormatHistory(recs),
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "Back", CallbackData: cbBackToMain}},
			},
		},
	})
}

func (s *Service) onCbWallets(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("👛 Pool holds %d wallet(s):", s.pool.Size()))
	for _, addr := range s.pool.Addresses() {
		lines = append(lines, "• "+addr.Hex())
	}
	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   strings.Join(lines, "\n"),
	})
}

func (s *Service) onCbSettings(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateIdle)
	s.sendSettings(ctx, b, chatID)
}

func (s *Service) onCbSetContract(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateAwaitContractAddr)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   "Send the target contract address (0x...):",
	})
}

func (s *Service) onCbSetCount(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateAwaitWalletCount)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("How many wallets should mint? (1-%d, pool holds %d)", maxWalletCount, s.pool.Size()),
	})
}

func (s *Service) onCbClearPrefs(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.prefs.ClearAll(chatID)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   "✅ Settings reset to defaults.",
	})
	s.sendSettings(ctx, b, chatID)
}

func (s *Service) onCbBackToMain(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateIdle)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        "Main menu:",
		ReplyMarkup: mainMenu(),
	})
}

func (s *Service) onAnyText(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	text := strings.TrimSpace(upd.Message.Text)

	// commands are handled elsewhere
	if strings.HasPrefix(text, "/") {
		return
	}

	switch s.state.Get(chatID) {
	case StateAwaitContractAddr:
		s.handleSetContract(ctx, b, chatID, text)

	case StateAwaitWalletCount:
		s.handleSetCount(ctx, b, chatID, text)

	default:
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   "Use /start to open the menu.",
		})
	}
}

func (s *Service) handleSetContract(ctx context.Context, b *tgbot.Bot, chatID int64, addrStr string) {
	if !IsEthAddress(addrStr) {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   "That doesn't look like an address. Expecting 0x + 40 hex chars.",
		})
		return
	}
	addr := common.HexToAddress(addrStr)

	s.prefs.SetContract(chatID, addr)
	s.state.Set(chatID, StateIdle)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("✅ Target contract set to %s.", addr.Hex()),
	})
}

func (s *Service) handleSetCount(ctx context.Context, b *tgbot.Bot, chatID int64, countStr string) {
	n, err := ParseWalletCount(countStr)
	if err != nil {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("Expecting a number between 1 and %d. Try again.", maxWalletCount),
		})
		return
	}

	s.prefs.SetWalletCount(chatID, n)
	s.state.Set(chatID, StateIdle)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("✅ Batches will mint from %d wallet(s).", n),
	})
}

func (s *Service) sendSettings(ctx context.Context, b *tgbot.Bot, chatID int64) {
	p, _ := s.prefs.GetCopy(chatID)

	contractLine := fmt.Sprintf("— Contract: %s (default)", s.defaults.Contract.Hex())
	if p.Contract != nil {
		contractLine = fmt.Sprintf("— Contract: %s", p.Contract.Hex())
	}
	countLine := "— Wallets per batch: all"
	if p.WalletCount > 0 {
		countLine = fmt.Sprintf("— Wallets per batch: %d", p.WalletCount)
	}

	text := strings.Join([]string{
		"⚙️ Mint settings:",
		contractLine,
		countLine,
		fmt.Sprintf("— Method: %s, value: %s wei", s.defaults.Method, s.defaults.ValueWei),
	}, "\n")

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "Set contract", CallbackData: cbSetContract}},
				{{Text: "Set wallet count", CallbackData: cbSetCount}},
				{{Text: "Reset", CallbackData: cbClearPrefs}},
				{{Text: "Back", CallbackData: cbBackToMain}},
			},
		},
	})
}

// providerFor builds the call-data provider for a chat, honoring its
// contract override.
func (s *Service) providerFor(chatID int64) (engine.CallDataProvider, error) {
	target := s.defaults.Contract
	if p, ok := s.prefs.GetCopy(chatID); ok && p.Contract != nil {
		target = *p.Contract
	}
	value, ok := new(big.Int).SetString(s.defaults.ValueWei, 10)
	if !ok {
		value = big.NewInt(0)
	}
	return contract.New(target, s.defaults.Method, value)
}

func (s *Service) walletsFor(chatID int64) []engine.Wallet {
	all := s.pool.Wallets()
	n := len(all)
	if p, ok := s.prefs.GetCopy(chatID); ok && p.WalletCount > 0 && p.WalletCount < n {
		n = p.WalletCount
	}
	out := make([]engine.Wallet, 0, n)
	for _, w := range all[:n] {
		out = append(out, w)
	}
	return out
}

func (s *Service) callbackChat(ctx context.Context, b *tgbot.Bot, upd *models.Update) (int64, bool) {
	cb := upd.CallbackQuery
	if cb == nil || cb.Message.Type == models.MaybeInaccessibleMessageTypeInaccessibleMessage {
		return 0, false
	}
	_, _ = b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: cb.ID,
	})
	return cb.Message.Message.Chat.ID, true
}
