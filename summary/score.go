package summary

import (
	"fmt"

	"github.com/taskdeck/taskdeck/task"
)

// Score is the priority-weighted completion ratio scaled to 0–10:
// sum(weight of completed tasks) / sum(all weights) × 10. The second return
// is false when the task list carries no weight, in which case no score is
// defined (rendered as "N/A" rather than dividing by zero).
func Score(tasks []*task.Task) (float64, bool) {
	total, completed := 0, 0
	for _, t := range tasks {
		w := t.Priority.Weight()
		total += w
		if t.Completed {
			completed += w
		}
	}
	if total == 0 {
		return 0, false
	}
	return 10 * float64(completed) / float64(total), true
}

// FormatScore renders a score as shown to the user, e.g. "6.67/10".
func FormatScore(score float64, ok bool) string {
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.2f/10", score)
}
