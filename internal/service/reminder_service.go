package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"todo-planner/internal/model"
	"todo-planner/internal/planner"
	"todo-planner/internal/repository"
)

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	store repository.TaskStore
}

func NewReminderService(store repository.TaskStore) *ReminderService {
	return &ReminderService{store: store}
}

// DailySummary lists the user's expired and today's tasks and counts the
// rest. It reads the store directly because reports are sent outside any
// user session.
func (s *ReminderService) DailySummary(ctx context.Context, userID string, now time.Time) (string, error) {
	tasks, err := s.store.Query(ctx, repository.Query{UserID: userID})
	if err != nil {
		return "", err
	}
	return RenderSummary(planner.Categorize(tasks, now), now), nil
}

// RenderSummary formats categorized tasks as Telegram HTML.
func RenderSummary(cats planner.Categories, now time.Time) string {
	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("⚠️ <b>Просроченные</b>\n")
	writeSection(&builder, cats[planner.BucketExpired], "— нет просроченных задач\n", now)

	builder.WriteString("\n🔥 <b>На сегодня</b>\n")
	writeSection(&builder, cats[planner.BucketToday], "— на сегодня ничего\n", now)

	builder.WriteString(fmt.Sprintf("\n📆 Впереди: %d · ✅ Выполнено: %d",
		len(cats[planner.BucketFuture]), len(cats[planner.BucketCompleted])))

	return strings.TrimSpace(builder.String())
}

func writeSection(b *strings.Builder, tasks []model.Task, empty string, now time.Time) {
	if len(tasks) == 0 {
		b.WriteString(empty)
		return
	}
	for _, task := range tasks {
		b.WriteString(FormatTask(task, now))
	}
}

// FormatTask renders one task line with its deadline, tag and description.
func FormatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := priorityIcon(task.Priority)
	if task.Completed {
		icon = "✅"
	}
	title := html.EscapeString(strings.TrimSpace(task.Name))
	sb.WriteString(fmt.Sprintf("%s %s <i>(%s)</i>", icon, title, TagLabel(task.Tag)))
	if task.InGroup() {
		sb.WriteString(" ♻️")
	}

	d := task.Deadline.In(now.Location())
	switch {
	case task.Completed:
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s", d.Format("2006-01-02 15:04")))
	case now.After(d):
		sb.WriteString(fmt.Sprintf("\n   ⏰ до %s · <b>просрочено</b>", d.Format("2006-01-02 15:04")))
	default:
		sb.WriteString(fmt.Sprintf("\n   ⏰ до %s", d.Format("2006-01-02 15:04")))
	}

	if desc := strings.TrimSpace(task.Description); desc != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(desc)))
	}
	sb.WriteString(fmt.Sprintf("\n   🆔 <code>%s</code>", shortID(task.ID)))

	sb.WriteByte('\n')
	return sb.String()
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴"
	case model.PriorityMedium:
		return "🟡"
	}
	return "🟢"
}

// shortID is the prefix shown to users; ResolveRef accepts it back.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
