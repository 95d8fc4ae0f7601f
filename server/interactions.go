package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/taskdeck/taskdeck/discord"
	"github.com/taskdeck/taskdeck/summary"
	"github.com/taskdeck/taskdeck/task"
)

// completeSelectID is the custom_id of the completion select menu.
const completeSelectID = "complete_tasks"

// optionLabelMax is Discord's select-option label limit.
const optionLabelMax = 100

// handleInteraction is the Discord interactions webhook: signature check,
// ping, slash commands, and the completion select menu.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if s.cfg.Discord.PublicKey != "" {
		ok := discord.VerifySignature(
			s.cfg.Discord.PublicKey,
			r.Header.Get("X-Signature-Ed25519"),
			r.Header.Get("X-Signature-Timestamp"),
			body,
		)
		if !ok {
			http.Error(w, "invalid request signature", http.StatusUnauthorized)
			return
		}
	}

	var in discord.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "invalid interaction payload", http.StatusBadRequest)
		return
	}

	switch in.Type {
	case discord.InteractionPing:
		writeJSON(w, http.StatusOK, discord.Pong())
	case discord.InteractionApplicationCmd:
		writeJSON(w, http.StatusOK, s.handleCommand(r, &in))
	case discord.InteractionMessageComponent:
		writeJSON(w, http.StatusOK, s.handleComponent(r, &in))
	default:
		http.Error(w, "unsupported interaction type", http.StatusBadRequest)
	}
}

func (s *Server) handleCommand(r *http.Request, in *discord.Interaction) discord.InteractionResponse {
	userID := in.UserID()
	if userID == "" || in.Data == nil {
		return discord.Ephemeral("Could not identify the invoking user.")
	}
	switch in.Data.Name {
	case "task_daily":
		return s.cmdTaskDaily(userID)
	case "complete_task_daily":
		return s.cmdCompleteTaskDaily(r, userID)
	case "weekly_score":
		return s.cmdWeeklyScore(r, userID)
	case "schedule_event":
		return s.cmdScheduleEvent(r, in.Data)
	}
	return discord.Ephemeral(fmt.Sprintf("Unknown command %q.", in.Data.Name))
}

// cmdTaskDaily hands out the link to the submission form. With form signing
// enabled the link carries a short-lived token bound to the user.
func (s *Server) cmdTaskDaily(userID string) discord.InteractionResponse {
	formURL := s.cfg.Server.FormBaseURL + "/form?user_id=" + url.QueryEscape(userID)
	if s.cfg.Auth.FormSecret != "" {
		token, err := signFormToken(s.cfg.Auth.FormSecret, userID, s.now())
		if err != nil {
			s.logger.Error("sign form token", "owner", userID, "error", err)
			return discord.Ephemeral("Could not create your form link, try again.")
		}
		formURL = s.cfg.Server.FormBaseURL + "/form?token=" + url.QueryEscape(token)
	}
	return discord.Ephemeral("Please fill out your tasks here: " + formURL)
}

// cmdCompleteTaskDaily shows a select menu of today's incomplete tasks.
// Option values carry task IDs, so completion marking never guesses from
// display labels.
func (s *Server) cmdCompleteTaskDaily(r *http.Request, userID string) discord.InteractionResponse {
	date := task.DisplayDate(s.now())
	tasks, err := s.store.ListTasks(r.Context(), userID, date)
	if err != nil {
		s.logger.Error("list tasks for completion menu", "owner", userID, "error", err)
		return discord.Ephemeral("Error: " + err.Error())
	}

	var options []discord.SelectOption
	for i, t := range tasks {
		if t.Completed {
			continue
		}
		label := fmt.Sprintf("Task %d: %s", i+1, t.Name)
		if len([]rune(label)) > optionLabelMax {
			label = string([]rune(label)[:optionLabelMax-3]) + "..."
		}
		options = append(options, discord.SelectOption{Label: label, Value: t.ID})
	}
	if len(options) == 0 {
		return discord.Ephemeral("You have no pending tasks for today.")
	}
	return discord.Ephemeral("🔍 Select tasks to mark as complete.",
		discord.ActionRow(discord.StringSelect(completeSelectID, "Select tasks to mark as complete", options)))
}

// handleComponent marks the selected tasks complete and edits the posted
// summary in place.
func (s *Server) handleComponent(r *http.Request, in *discord.Interaction) discord.InteractionResponse {
	userID := in.UserID()
	if userID == "" || in.Data == nil || in.Data.CustomID != completeSelectID {
		return discord.Ephemeral("Unsupported interaction.")
	}
	ctx := r.Context()
	date := task.DisplayDate(s.now())

	if _, err := s.store.MarkCompleted(ctx, userID, date, in.Data.Values); err != nil {
		s.logger.Error("mark tasks completed", "owner", userID, "error", err)
		return discord.Ephemeral("Error: " + err.Error())
	}

	ref, err := s.store.LatestSummaryRef(ctx, userID, date)
	if err != nil {
		if errors.Is(err, task.ErrNoSummary) {
			return discord.Ephemeral("Could not find the message to edit.")
		}
		s.logger.Error("look up summary message", "owner", userID, "error", err)
		return discord.Ephemeral("Error: " + err.Error())
	}

	tasks, err := s.store.ListTasks(ctx, userID, date)
	if err != nil {
		s.logger.Error("list tasks for re-render", "owner", userID, "error", err)
		return discord.Ephemeral("Error: " + err.Error())
	}

	err = s.chat.EditWebhookMessage(ctx, ref.MessageID, summary.Message(userID, date, tasks))
	switch {
	case err == nil:
		return discord.Ephemeral("✅ Tasks marked as complete!")
	case errors.Is(err, discord.ErrNotFound):
		return discord.Ephemeral("Could not find the message to edit.")
	case errors.Is(err, discord.ErrForbidden):
		return discord.Ephemeral("Webhook lacks permission to edit the message.")
	default:
		s.logger.Error("edit summary message", "owner", userID, "messageId", ref.MessageID, "error", err)
		return discord.Ephemeral("Error: " + err.Error())
	}
}

// cmdWeeklyScore reports the priority-weighted completion score pooled over
// the last seven days.
func (s *Server) cmdWeeklyScore(r *http.Request, userID string) discord.InteractionResponse {
	var week []*task.Task
	now := s.now()
	for i := 0; i < 7; i++ {
		date := task.DisplayDate(now.AddDate(0, 0, -i))
		tasks, err := s.store.ListTasks(r.Context(), userID, date)
		if err != nil {
			s.logger.Error("list tasks for weekly score", "owner", userID, "date", date, "error", err)
			return discord.Ephemeral("Error: " + err.Error())
		}
		week = append(week, tasks...)
	}
	score, ok := summary.Score(week)
	if !ok {
		return discord.Ephemeral("No tasks recorded in the last 7 days.")
	}
	return discord.Ephemeral(fmt.Sprintf("📊 Your weekly completion score: **%s** across %d tasks.",
		summary.FormatScore(score, ok), len(week)))
}

// cmdScheduleEvent creates a guild voice event N minutes from now.
func (s *Server) cmdScheduleEvent(r *http.Request, data *discord.InteractionData) discord.InteractionResponse {
	name, _ := data.Option("name")
	description, _ := data.Option("description")
	minutes, ok := data.Option("minutes_from_now")
	if name.String() == "" || !ok {
		return discord.Ephemeral("Event name and start time are required.")
	}
	start := s.now().UTC().Add(time.Duration(minutes.Int()) * time.Minute)

	err := s.chat.CreateScheduledEvent(r.Context(), s.cfg.Discord.GuildID, discord.ScheduledEvent{
		Name:         name.String(),
		Description:  description.String(),
		ChannelID:    s.cfg.Discord.EventChannelID,
		StartTime:    start.Format(time.RFC3339),
		EntityType:   discord.EventEntityVoice,
		PrivacyLevel: discord.EventPrivacyGuildOnly,
	})
	if err != nil {
		s.logger.Error("create scheduled event", "name", name.String(), "error", err)
		return discord.Ephemeral("Failed to create event: " + err.Error())
	}
	return discord.InteractionResponse{
		Type: discord.ResponseMessage,
		Data: &discord.InteractionResponseData{
			Content: fmt.Sprintf("Event %q scheduled at %s UTC", name.String(), start.Format("2006-01-02 15:04")),
		},
	}
}
