// Package summary renders daily task lists into Discord embeds and computes
// completion scores. Everything here is a pure function of the task records,
// so the same call produces the posted summary and every later in-place edit.
package summary

import (
	"fmt"
	"math"

	"github.com/taskdeck/taskdeck/discord"
	"github.com/taskdeck/taskdeck/task"
)

// embedColor is the summary accent color.
const embedColor = 0x0059FF

// Render builds the summary embed for one owner and date.
func Render(owner, date string, tasks []*task.Task) discord.Embed {
	fields := make([]discord.EmbedField, 0, len(tasks))
	for i, t := range tasks {
		checkmark := ""
		if t.Completed {
			checkmark = " ✅"
		}
		dependency := "None"
		if t.DependsOn != "" {
			dependency = fmt.Sprintf("<@%s>", t.DependsOn)
		}
		fields = append(fields, discord.EmbedField{
			Name: fmt.Sprintf("📌 **Task %d: %s**  |  🏷 **Priority:** %s%s",
				i+1, t.Name, t.Priority, checkmark),
			Value: fmt.Sprintf("📖 **Description:**\n%s\n\n🔗 **Dependency:** %s\n\n⏳ **Estimated Time:** %s\n────────────",
				t.Description, dependency, t.EstimatedTime),
		})
	}

	return discord.Embed{
		Title:       fmt.Sprintf("📅 Tasks for %s", date),
		Description: fmt.Sprintf("📝 **Tasks added by <@%s>**\n\n", owner),
		Color:       embedColor,
		Fields:      fields,
		Footer: &discord.EmbedFooter{
			Text: fmt.Sprintf("Completion: %d%% ✅", CompletionPercent(tasks)),
		},
	}
}

// Message wraps the rendered embed in a webhook payload.
func Message(owner, date string, tasks []*task.Task) discord.WebhookMessage {
	return discord.WebhookMessage{Embeds: []discord.Embed{Render(owner, date, tasks)}}
}

// CompletionPercent is the unweighted completion ratio, rounded to the
// nearest percent. An empty task list is 0% rather than a division error.
func CompletionPercent(tasks []*task.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(tasks))))
}
