package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/issuegate/internal/events"
)

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 8 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		eventsText,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Local().Format("15:04:05"))
	typeName := typeStyle(e.Type, theme).Render(fmt.Sprintf("%-20s", e.Type))
	return fmt.Sprintf("%s %s %s", ts, typeName, extractEventDesc(e))
}

func typeStyle(typ string, theme Theme) lipgloss.Style {
	switch typ {
	case "webhook.completed", "webhook.acknowledged":
		return theme.StatusOK
	case "webhook.failed", "webhook.rejected", "webhook.invalid":
		return theme.StatusFailed
	case "webhook.skipped", "webhook.ignored":
		return theme.StatusQueued
	case events.TypeIssueEvent:
		return theme.Highlight
	default:
		return theme.Dim
	}
}

func extractEventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string

	if id, ok := data["delivery_id"].(string); ok && id != "" {
		parts = append(parts, fmt.Sprintf("[%s]", shortID(id)))
	}
	if ev, ok := data["event"].(string); ok && ev != "" {
		parts = append(parts, ev)
	}
	if action, ok := data["action"].(string); ok && action != "" {
		parts = append(parts, action)
	}
	if n, ok := data["issue_number"].(float64); ok && n > 0 {
		parts = append(parts, fmt.Sprintf("#%d", int(n)))
	}
	if msg, ok := data["error"].(string); ok && msg != "" {
		parts = append(parts, msg)
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}

	return strings.Join(parts, " ")
}
