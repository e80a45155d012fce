package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/issuegate/internal/events"
)

const maxDeliveries = 200

// DeliveryState is the last known outcome of one webhook delivery.
type DeliveryState struct {
	ID      string
	Event   string
	State   string
	Status  int
	Error   string
	Issue   int
	Action  string
	Updated time.Time
}

// Deliveries tracks webhook deliveries seen on the event stream, newest first.
type Deliveries struct {
	order  []string
	byID   map[string]*DeliveryState
	counts map[string]int
}

func NewDeliveries() *Deliveries {
	return &Deliveries{
		byID:   make(map[string]*DeliveryState),
		counts: make(map[string]int),
	}
}

type outcomePayload struct {
	DeliveryID string `json:"delivery_id"`
	Event      string `json:"event"`
	Status     int    `json:"status"`
	Error      string `json:"error"`
}

type recordPayload struct {
	DeliveryID  string `json:"delivery_id"`
	Event       string `json:"event"`
	Action      string `json:"action"`
	IssueNumber int    `json:"issue_number"`
}

// Apply folds one hub event into the delivery table. It reports whether the
// event was relevant.
func (d *Deliveries) Apply(e events.Event) bool {
	switch {
	case strings.HasPrefix(e.Type, "webhook."):
		var p outcomePayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return false
		}
		state := strings.TrimPrefix(e.Type, "webhook.")
		d.counts[state]++
		if p.DeliveryID == "" {
			return true
		}
		ds := d.get(p.DeliveryID)
		ds.State = state
		ds.Status = p.Status
		ds.Error = p.Error
		if p.Event != "" {
			ds.Event = p.Event
		}
		ds.Updated = e.At
		return true

	case e.Type == events.TypeIssueEvent:
		var p recordPayload
		if err := json.Unmarshal(e.Data, &p); err != nil || p.DeliveryID == "" {
			return false
		}
		ds := d.get(p.DeliveryID)
		ds.Event = p.Event
		ds.Action = p.Action
		ds.Issue = p.IssueNumber
		ds.Updated = e.At
		return true
	}
	return false
}

func (d *Deliveries) get(id string) *DeliveryState {
	if ds, ok := d.byID[id]; ok {
		return ds
	}
	ds := &DeliveryState{ID: id}
	d.byID[id] = ds
	d.order = append([]string{id}, d.order...)
	if len(d.order) > maxDeliveries {
		for _, old := range d.order[maxDeliveries:] {
			delete(d.byID, old)
		}
		d.order = d.order[:maxDeliveries]
	}
	return ds
}

// Len returns the number of tracked deliveries.
func (d *Deliveries) Len() int { return len(d.order) }

// Count returns how many outcomes of the given state were seen.
func (d *Deliveries) Count(state string) int { return d.counts[state] }

// Get returns the tracked delivery with the given id.
func (d *Deliveries) Get(id string) (*DeliveryState, bool) {
	ds, ok := d.byID[id]
	return ds, ok
}

// Rows renders the tracked deliveries as table rows, newest first.
func (d *Deliveries) Rows() []table.Row {
	rows := make([]table.Row, 0, len(d.order))
	for _, id := range d.order {
		ds := d.byID[id]
		issue := ""
		if ds.Issue > 0 {
			issue = fmt.Sprintf("#%d", ds.Issue)
		}
		status := ""
		if ds.Status > 0 {
			status = fmt.Sprintf("%d", ds.Status)
		}
		at := ""
		if !ds.Updated.IsZero() {
			at = ds.Updated.Local().Format("15:04:05")
		}
		rows = append(rows, table.Row{
			stateIcon(ds.State),
			shortID(ds.ID),
			ds.Event,
			ds.Action,
			issue,
			status,
			at,
		})
	}
	return rows
}

func newDeliveryTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Delivery", Width: 10},
			{Title: "Event", Width: 14},
			{Title: "Action", Width: 12},
			{Title: "Issue", Width: 7},
			{Title: "HTTP", Width: 5},
			{Title: "At", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func renderDeliveries(d *Deliveries, t table.Model, theme Theme, width int) string {
	innerWidth := width - 4

	summary := fmt.Sprintf(" %s %d  %s %d  %s %d  %s %d",
		theme.StatusOK.Render("completed"), d.Count("completed"),
		theme.StatusQueued.Render("skipped"), d.Count("skipped"),
		theme.StatusFailed.Render("failed"), d.Count("failed"),
		theme.StatusFailed.Render("rejected"), d.Count("rejected"),
	)

	var body string
	if d.Len() == 0 {
		body = theme.Dim.Render("  Waiting for deliveries...")
	} else {
		body = t.View()
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("DELIVERIES"),
		summary,
		body,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func stateIcon(state string) string {
	switch state {
	case "completed", "acknowledged":
		return "✓"
	case "skipped", "ignored":
		return "·"
	case "failed", "rejected", "invalid":
		return "✗"
	case "":
		return "…"
	default:
		return "?"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
