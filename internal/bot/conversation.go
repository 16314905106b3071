package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-planner/internal/model"
	"todo-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageDescription
	stageTag
	stagePriority
	stageDeadline
	stageRecurrence
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	b.log.Info().Int64("user", msg.From.ID).Msg("start new task conversation")
	b.setConversation(msg.From.ID, &conversationState{stage: stageName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём новую задачу.\n<b>Шаг 1:</b> как её назвать?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Название не может быть пустым.", cancelKeyboard())
		}
		state.input.Name = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Добавь короткое описание (или нажми «Пропустить»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageTag
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Выбери тег.", tagKeyboard())
	case stageTag:
		tag, ok := parseTag(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Такого тега нет, выбери из списка.", tagKeyboard())
		}
		state.input.Tag = tag
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "⚡️ Насколько это важно?", priorityKeyboard())
	case stagePriority:
		p, ok := parsePriority(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери приоритет кнопкой.", priorityKeyboard())
		}
		state.input.Priority = p
		state.stage = stageDeadline
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Укажи дедлайн: <code>2025-11-30 18:00</code> или просто <code>2025-11-30</code>.", cancelKeyboard())
	case stageDeadline:
		deadline, err := parseDeadline(text, b.location())
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Не могу распознать дату. Используй формат <code>2025-11-30 18:00</code>.", cancelKeyboard())
		}
		state.input.Deadline = deadline
		state.stage = stageRecurrence
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Повторять задачу?", recurrenceKeyboard())
	case stageRecurrence:
		r, ok := parseRecurrence(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери вариант кнопкой.", recurrenceKeyboard())
		}
		state.input.Recurrence = r
		err := b.finishTaskCreation(ctx, msg.Chat.ID, state.input)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, input service.TaskInput) error {
	tasks, err := b.taskSvc.CreateTask(ctx, input)
	if err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Не удалось сохранить задачу. %s", userMessage(err)))
	}

	first := tasks[0]
	loc := b.location()

	var summary strings.Builder
	summary.WriteString("✅ <b>Задача сохранена</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> <code>%s</code>\n", shortRef(first.ID)))
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", escape(normalizeTitle(first.Name))))
	if first.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Описание:</b> %s\n", escape(first.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Тег:</b> %s\n", service.TagLabel(first.Tag)))
	summary.WriteString(fmt.Sprintf("• <b>Приоритет:</b> %s\n", priorityLabels[first.Priority]))
	summary.WriteString(fmt.Sprintf("• <b>Дедлайн:</b> %s\n", first.Deadline.In(loc).Format("2006-01-02 15:04")))
	if first.Recurrence != nil {
		last := tasks[len(tasks)-1]
		summary.WriteString(fmt.Sprintf("• <b>Повтор:</b> %s, создано %d шт. до %s\n",
			recurrenceLabel(*first.Recurrence), len(tasks), last.Deadline.In(loc).Format("2006-01-02")))
	}

	return b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String()))
}

func recurrenceLabel(r model.Recurrence) string {
	for _, opt := range recurrenceLabels {
		if opt.value != nil && *opt.value == r {
			return strings.ToLower(opt.label)
		}
	}
	return string(r)
}

// shortRef is the id prefix users type back into commands.
func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
