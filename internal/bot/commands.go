package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-planner/internal/model"
	"todo-planner/internal/planner"
	"todo-planner/internal/service"
)

// sectionLimit caps how many tasks of one bucket go into a message.
const sectionLimit = 10

var bucketTitles = map[planner.Bucket]string{
	planner.BucketExpired:   "⚠️ <b>Просроченные</b>",
	planner.BucketToday:     "🔥 <b>На сегодня</b>",
	planner.BucketFuture:    "📆 <b>Впереди</b>",
	planner.BucketCompleted: "✅ <b>Выполненные</b>",
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.sendTaskList(ctx, msg.Chat.ID)
	case "filter":
		return b.handleFilter(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "rename":
		return b.handleRename(ctx, msg)
	case "tags":
		return b.handleTags(ctx, msg)
	case "register":
		return b.handleRegister(ctx, msg)
	case "login":
		return b.handleLogin(ctx, msg)
	case "me":
		return b.handleMe(ctx, msg)
	case "logout":
		b.resetDialogs(msg.From.ID)
		b.sessions.SignOut(sessionKey(msg.Chat.ID))
		return b.sendText(msg.Chat.ID, "👋 Ты вышел. Следующее сообщение вернёт тебя в Telegram-аккаунт.")
	case "interval":
		return b.handleInterval(msg)
	case "cancel":
		b.resetDialogs(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Диалог отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я планировщик задач: помогу ничего не забыть.</b>\n\n%s",
		escape(name), helpText,
	)
	return b.sendText(msg.Chat.ID, text)
}

const helpText = "Команды:\n" +
	"• /newtask — добавить задачу пошагово\n" +
	"• /tasks — просроченные, сегодняшние и будущие задачи\n" +
	"• /filter tag=work,home priority=high from=2025-01-01 to=2025-01-31 open — отбор задач\n" +
	"• /complete &lt;id&gt; — отметить задачу выполненной\n" +
	"• /rename &lt;id&gt; &lt;название&gt; — переименовать\n" +
	"• /delete &lt;id&gt; — удалить задачу или серию\n" +
	"• /tags — открытые задачи по тегам\n" +
	"• /register &lt;email&gt; &lt;пароль&gt; — привязать email\n" +
	"• /login &lt;email&gt; &lt;пароль&gt;, /logout — вход и выход\n" +
	"• /me — текущий аккаунт\n" +
	"• /interval &lt;часы&gt; — как часто присылать отчёт\n" +
	"• /report — отчёт прямо сейчас\n" +
	"• /cancel — отменить текущий ввод"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Подсказки</b>\n"+helpText)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	cats, err := b.taskSvc.Categorized(ctx, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сформировать отчёт. %s", userMessage(err)))
	}
	return b.sendText(msg.Chat.ID, service.RenderSummary(cats, b.now()))
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64) error {
	now := b.now()
	cats, err := b.taskSvc.Categorized(ctx, now)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить задачи. %s", userMessage(err)))
	}
	if cats.Total() == 0 {
		return b.sendText(chatID, "У тебя нет задач. Добавь новую через /newtask.")
	}

	var builder strings.Builder
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, bucket := range planner.Buckets {
		tasks := cats[bucket]
		if len(tasks) == 0 {
			continue
		}
		builder.WriteString(bucketTitles[bucket] + "\n")
		for i, task := range tasks {
			if i == sectionLimit {
				builder.WriteString(fmt.Sprintf("… и ещё %d\n", len(tasks)-sectionLimit))
				break
			}
			builder.WriteString(service.FormatTask(task, now))
			if bucket == planner.BucketExpired || bucket == planner.BucketToday {
				buttons = append(buttons, taskButtons(task))
			}
		}
		builder.WriteByte('\n')
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err = b.api.Send(msg)
	return err
}

func taskButtons(task model.Task) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(task.Name, 24), cbCompletePrefix+task.ID),
		tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
	)
}

func (b *Bot) handleFilter(ctx context.Context, msg *tgbotapi.Message) error {
	spec, err := parseFilterArgs(msg.CommandArguments(), b.location())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не понял фильтр: %s\nПример: <code>/filter tag=work priority=high open</code>", escape(err.Error())))
	}
	tasks, err := b.taskSvc.Filtered(ctx, spec)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "🔍 Ничего не нашлось.")
	}

	now := b.now()
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🔍 <b>Найдено: %d</b>\n", len(tasks)))
	for i, task := range tasks {
		if i == 2*sectionLimit {
			builder.WriteString(fmt.Sprintf("… и ещё %d\n", len(tasks)-i))
			break
		}
		builder.WriteString(service.FormatTask(task, now))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	ref, _ := splitRef(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /complete 3f2a9c1b")
	}
	task, err := b.taskSvc.ResolveRef(ctx, ref)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.completeTaskAndRefresh(ctx, msg.Chat.ID, task.ID)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	ref, _ := splitRef(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /delete 3f2a9c1b")
	}
	task, err := b.taskSvc.ResolveRef(ctx, ref)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.askDelete(ctx, msg.Chat.ID, msg.From.ID, task.ID)
}

func (b *Bot) handleRename(ctx context.Context, msg *tgbotapi.Message) error {
	ref, name := splitRef(msg.CommandArguments())
	if ref == "" || name == "" {
		return b.sendText(msg.Chat.ID, "Формат: /rename &lt;id&gt; &lt;новое название&gt;")
	}
	task, err := b.taskSvc.ResolveRef(ctx, ref)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}

	pending, err := b.taskSvc.ScopeChoice(ctx, task.ID, planner.OpUpdate)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if !pending.NeedsChoice() {
		return b.applyRename(ctx, msg.Chat.ID, task.ID, name, planner.ScopeSingle)
	}
	b.setPending(msg.From.ID, pendingMutation{op: planner.OpUpdate, taskID: task.ID, name: name})
	text := fmt.Sprintf("«%s» входит в серию. Что переименовать?", escape(normalizeTitle(task.Name)))
	return b.sendWithReplyMarkup(msg.Chat.ID, text, scopeKeyboard(pending))
}

func (b *Bot) applyRename(ctx context.Context, chatID int64, taskID, name string, scope planner.Scope) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	edit := task
	edit.Name = name
	res, err := b.taskSvc.UpdateTask(ctx, taskID, edit, scope)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	return b.sendText(chatID, fmt.Sprintf("✏️ Переименовано задач: %d → «%s».", len(res.Affected), escape(normalizeTitle(name))))
}

func (b *Bot) handleTags(ctx context.Context, msg *tgbotapi.Message) error {
	counts, err := b.tagSvc.Counts(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось посчитать теги. %s", userMessage(err)))
	}
	var builder strings.Builder
	builder.WriteString("🏷 <b>Открытые задачи по тегам</b>\n")
	for _, c := range counts {
		builder.WriteString(fmt.Sprintf("• %s — %d\n", c.Label, c.Open))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleRegister(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, "Формат: /register &lt;email&gt; &lt;пароль&gt;")
	}
	if err := b.sessions.Register(ctx, sessionKey(msg.Chat.ID), fields[0], fields[1]); err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, "📧 Email привязан. Теперь можно входить через /login.")
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, "Формат: /login &lt;email&gt; &lt;пароль&gt;")
	}
	user, err := b.sessions.SignInWithEmail(ctx, sessionKey(msg.Chat.ID), fields[0], fields[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	b.resetDialogs(msg.From.ID)
	b.log.Info().Int64("chat", msg.Chat.ID).Str("user", user.ID).Msg("email sign in")
	return b.sendText(msg.Chat.ID, "🔓 Вход выполнен.")
}

func (b *Bot) handleMe(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.sessions.CurrentUser(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, profileText(user))
}

func profileText(user *model.User) string {
	var builder strings.Builder
	builder.WriteString("👤 <b>Аккаунт</b>\n")
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name != "" {
		builder.WriteString("Имя: " + escape(name) + "\n")
	}
	if user.Username != "" {
		builder.WriteString("Telegram: @" + escape(user.Username) + "\n")
	}
	if user.Email != nil && *user.Email != "" {
		builder.WriteString("Email: " + escape(*user.Email) + "\n")
	} else {
		builder.WriteString("Email не привязан — /register &lt;email&gt; &lt;пароль&gt;\n")
	}
	builder.WriteString("ID: <code>" + shortRef(user.ID) + "</code>")
	return builder.String()
}

func (b *Bot) handleInterval(msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		b.mu.Lock()
		current := fmt.Sprintf("каждые %d ч.", int(b.config.ReportInterval.Hours()))
		if b.config.ReportTime != "" {
			current = "ежедневно в " + b.config.ReportTime
		}
		b.mu.Unlock()
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Сейчас отчёт приходит %s. Укажи число часов, например: /interval 4", current))
	}
	hours, err := strconv.Atoi(args)
	if err != nil || hours <= 0 {
		return b.sendText(msg.Chat.ID, "Интервал должен быть положительным числом часов, например /interval 6")
	}
	interval := time.Duration(hours) * time.Hour
	if b.onInterval != nil {
		if err := b.onInterval(interval); err != nil {
			return b.sendText(msg.Chat.ID, userMessage(err))
		}
	}
	b.mu.Lock()
	b.config.ReportInterval = interval
	b.config.ReportTime = ""
	b.mu.Unlock()
	return b.sendText(msg.Chat.ID, fmt.Sprintf("Интервал уведомлений обновлён: каждые %d ч.", hours))
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelTags):
		return true, b.handleTags(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	b.ack(cb.ID)
	chatID := cb.Message.Chat.ID
	ctx, err := b.withSession(ctx, chatID, cb.From)
	if err != nil {
		return err
	}

	data := cb.Data
	b.log.Debug().Int64("user", cb.From.ID).Str("data", data).Msg("callback")
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		return b.askComplete(ctx, chatID, cb.From.ID, strings.TrimPrefix(data, cbCompletePrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.askDelete(ctx, chatID, cb.From.ID, strings.TrimPrefix(data, cbDeletePrefix))
	case data == cbScopeCancel:
		b.takePending(cb.From.ID)
		return b.sendText(chatID, "↩️ Отменено.")
	case strings.HasPrefix(data, cbScopePrefix):
		scope, ok := planner.ParseScope(strings.TrimPrefix(data, cbScopePrefix))
		if !ok {
			return nil
		}
		pending, ok := b.takePending(cb.From.ID)
		if !ok {
			return b.sendText(chatID, "Этот выбор уже неактуален.")
		}
		return b.applyPending(ctx, chatID, pending, scope)
	}
	return nil
}

func (b *Bot) applyPending(ctx context.Context, chatID int64, p pendingMutation, scope planner.Scope) error {
	if p.op == planner.OpUpdate {
		return b.applyRename(ctx, chatID, p.taskID, p.name, scope)
	}
	return b.deleteTaskAndRefresh(ctx, chatID, p.taskID, scope)
}

func (b *Bot) askComplete(ctx context.Context, chatID, userID int64, taskID string) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if task.Completed {
		return b.sendText(chatID, "Задача уже выполнена.")
	}
	text := fmt.Sprintf("Отметить задачу «%s» как выполненную?", escape(normalizeTitle(task.Name)))
	b.setConfirmation(userID, confirmationRequest{taskID: task.ID, action: actionComplete})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

// askDelete asks for a scope when the task belongs to a series and for a
// plain confirmation otherwise.
func (b *Bot) askDelete(ctx context.Context, chatID, userID int64, taskID string) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	pending, err := b.taskSvc.ScopeChoice(ctx, taskID, planner.OpDelete)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if pending.NeedsChoice() {
		b.setPending(userID, pendingMutation{op: planner.OpDelete, taskID: taskID})
		text := fmt.Sprintf("«%s» входит в серию. Что удалить?", escape(normalizeTitle(task.Name)))
		return b.sendWithReplyMarkup(chatID, text, scopeKeyboard(pending))
	}
	text := fmt.Sprintf("Удалить задачу «%s»?", escape(normalizeTitle(task.Name)))
	b.setConfirmation(userID, confirmationRequest{taskID: taskID, action: actionDelete})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, req.taskID, planner.ScopeSingle)
		}
		return b.completeTaskAndRefresh(ctx, msg.Chat.ID, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		prompt := "Подтверди или отмени выполнение задачи."
		if req.action == actionDelete {
			prompt = "Подтверди или отмени удаление задачи."
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
	}
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, taskID string) error {
	task, err := b.taskSvc.CompleteTask(ctx, taskID, true)
	if err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}
	info := fmt.Sprintf("✅ Задача «%s» выполнена.", escape(normalizeTitle(task.Name)))
	if task.InGroup() {
		info = fmt.Sprintf("♻️ Задача «%s» выполнена, остальные повторы остались в списке.", escape(normalizeTitle(task.Name)))
	}
	if err := b.sendTextWithRemove(chatID, info); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, taskID string, scope planner.Scope) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}
	res, err := b.taskSvc.DeleteTask(ctx, taskID, scope)
	if err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}

	info := fmt.Sprintf("🗑 Задача «%s» удалена.", escape(normalizeTitle(task.Name)))
	if len(res.Affected) > 1 {
		info = fmt.Sprintf("🗑 Удалено задач серии «%s»: %d.", escape(normalizeTitle(task.Name)), len(res.Affected))
	}
	if err := b.sendTextWithRemove(chatID, info); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}
