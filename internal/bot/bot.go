package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"todo-planner/internal/auth"
	"todo-planner/internal/config"
	"todo-planner/internal/logger"
	"todo-planner/internal/planner"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID string
	action confirmationAction
}

// pendingMutation is an update or delete waiting for the user to pick which
// instances of a series it applies to.
type pendingMutation struct {
	op     planner.Operation
	taskID string
	name   string
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api         *tgbotapi.BotAPI
	sessions    *auth.Sessions
	userRepo    *repository.UserRepository
	taskSvc     *service.TaskService
	tagSvc      *service.TagService
	reminderSvc *service.ReminderService
	config      *config.Config
	log         zerolog.Logger

	// onInterval is called after /interval changes the report period.
	onInterval func(time.Duration) error

	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	pending       map[int64]pendingMutation
	mu            sync.Mutex
}

// Deps groups the services the bot talks to.
type Deps struct {
	Sessions   *auth.Sessions
	Users      *repository.UserRepository
	Tasks      *service.TaskService
	Tags       *service.TagService
	Reminders  *service.ReminderService
	Config     *config.Config
	OnInterval func(time.Duration) error
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	l := logger.Component("bot")
	l.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:           api,
		sessions:      deps.Sessions,
		userRepo:      deps.Users,
		taskSvc:       deps.Tasks,
		tagSvc:        deps.Tags,
		reminderSvc:   deps.Reminders,
		config:        deps.Config,
		onInterval:    deps.OnInterval,
		log:           l,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		pending:       make(map[int64]pendingMutation),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Int64("chat", update.Message.Chat.ID).Msg("handle message")
			}
		}
	}

	return nil
}

// withSession binds the chat to a session, signing the Telegram account in
// on first contact or after /logout.
func (b *Bot) withSession(ctx context.Context, chatID int64, from *tgbotapi.User) (context.Context, error) {
	key := sessionKey(chatID)
	ctx = auth.WithSession(ctx, key)
	ctx = logger.Ctx(ctx).With().Int64("chat", chatID).Logger().WithContext(ctx)
	if b.sessions.Active(key) {
		return ctx, nil
	}
	if _, err := b.sessions.SignInTelegram(ctx, key, from.ID, from.FirstName, from.LastName, from.UserName); err != nil {
		return ctx, fmt.Errorf("sign in: %w", err)
	}
	return ctx, nil
}

func sessionKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	ctx, err := b.withSession(ctx, msg.Chat.ID, msg.From)
	if err != nil {
		return err
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.resetDialogs(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Диалог отменён. Я здесь, чтобы начать заново.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Info().Int64("user", msg.From.ID).Str("command", msg.Command()).Msg("command")
		return b.handleCommand(ctx, msg)
	}

	if req, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, req)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /newtask, чтобы добавить задачу, или /help для списка команд.")
}

// SendDailyReports sends a summary to every user with a Telegram account.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListWithTelegram(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		chatID := *user.TelegramID
		text, err := b.reminderSvc.DailySummary(ctx, user.ID, now)
		if err != nil {
			b.log.Error().Err(err).Str("user", user.ID).Msg("build summary")
			continue
		}
		if err := b.sendText(chatID, text); err != nil {
			b.log.Error().Err(err).Int64("chat", chatID).Msg("send summary")
		}
	}
	return nil
}

func (b *Bot) now() time.Time {
	if b.config != nil && b.config.Location != nil {
		return time.Now().In(b.config.Location)
	}
	return time.Now()
}

func (b *Bot) location() *time.Location {
	return b.now().Location()
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendMenuPlaceholder(chatID)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🔹 Главное меню")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(callbackID string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setPending(userID int64, p pendingMutation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[userID] = p
}

// takePending removes and returns the pending mutation of userID.
func (b *Bot) takePending(userID int64) (pendingMutation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[userID]
	delete(b.pending, userID)
	return p, ok
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) resetDialogs(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
	delete(b.confirmations, userID)
	delete(b.pending, userID)
}

// userMessage turns a service error into a reply for the chat.
func userMessage(err error) string {
	var partial *repository.PartialBatchFailure
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return "Сначала войди: /start или /login."
	case errors.Is(err, repository.ErrNotFound):
		return "Задача не найдена."
	case errors.Is(err, planner.ErrOwnershipViolation):
		return "Это чужая задача."
	case errors.Is(err, planner.ErrInvalidScope):
		return "Так нельзя: " + escape(reasonOf(err))
	case errors.Is(err, service.ErrAmbiguousRef):
		return "Под этот ID подходит несколько задач, укажи больше символов."
	case errors.Is(err, service.ErrInvalidTask):
		return "Некорректные данные: " + escape(reasonOf(err))
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Неверный email или пароль."
	case errors.Is(err, auth.ErrEmailTaken):
		return "Этот email уже зарегистрирован."
	case errors.Is(err, auth.ErrNoSession):
		return "Сессия не найдена, отправь /start."
	case errors.Is(err, auth.ErrWeakPassword):
		return "Пароль должен быть не короче 6 символов."
	case errors.As(err, &partial):
		return "Не удалось сохранить изменения, попробуй ещё раз."
	}
	return fmt.Sprintf("Ошибка: %s", escape(err.Error()))
}

// reasonOf drops the sentinel prefix from a wrapped error message.
func reasonOf(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func escape(s string) string {
	return html.EscapeString(s)
}
