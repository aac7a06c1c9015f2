package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/resilience"
	"github.com/sells-group/labsync/internal/store"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML goes through JSON so field names match the API.
func printYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "marshal")
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return eris.Wrap(err, "convert")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close() //nolint:errcheck
	return enc.Encode(generic)
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

func money(v float64) string {
	return fmt.Sprintf("$%s", commas(v))
}

func commas(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

func shortTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func renderStatus(w io.Writer, counts store.StageCounts, dlqDepth int, totals *store.AllocationTotals) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Stage", "Pending", "Succeeded", "Failed"})
	for _, s := range model.Stages {
		c := counts[s]
		tw.AppendRow(table.Row{s, c[model.StatusPending], c[model.StatusSucceeded], c[model.StatusFailed]})
	}
	tw.AppendFooter(table.Row{"DLQ depth", dlqDepth, "", ""})
	tw.Render()

	if totals == nil {
		return
	}
	at := newTable(w)
	at.AppendHeader(table.Row{"Allocations", "Allocated", "Spent"})
	at.AppendRow(table.Row{totals.Count, money(totals.Allocated), money(totals.Spent)})
	at.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	at.Render()
}

func renderMessages(w io.Writer, msgs []model.Message) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Sender", "Received", "Extraction", "Design", "Allocation", "Text"})
	for _, m := range msgs {
		tw.AppendRow(table.Row{
			m.ID, m.SenderName, shortTime(m.DateReceived),
			m.ExtractionStatus, m.DesignStatus, m.AllocationStatus,
			truncate(m.Text, 40),
		})
	}
	tw.Render()
}

func renderBudget(w io.Writer, b *model.Budget) {
	fmt.Fprintf(w, "%s (%s)\nmeeting %s, designed by %s at %s\n\n",
		b.ProjectName, b.ID, b.MeetingID, b.DesignedBy, shortTime(b.DesignedAt))

	people := newTable(w)
	people.SetTitle("People")
	people.AppendHeader(table.Row{"Role", "Count", "Rate", "Hours", "Total"})
	for _, role := range model.Roles {
		rc := b.PeopleCosts.Get(role)
		people.AppendRow(table.Row{role, rc.Count, money(rc.Rate), rc.Hours, money(rc.Total)})
	}
	people.AppendFooter(table.Row{"", "", "", "", money(b.PeopleCosts.Total())})
	people.Render()

	res := newTable(w)
	res.SetTitle("Resources")
	res.AppendHeader(table.Row{"Resource", "Cost"})
	for _, r := range model.Resources {
		res.AppendRow(table.Row{r, money(b.ResourceCosts.Get(r))})
	}
	res.AppendFooter(table.Row{"", money(b.ResourceCosts.Total())})
	res.Render()

	if len(b.Breakdown) > 0 {
		bd := newTable(w)
		bd.SetTitle("Breakdown")
		bd.AppendHeader(table.Row{"Category", "Item", "Qty", "Unit", "Total"})
		for _, li := range b.Breakdown {
			bd.AppendRow(table.Row{li.Category, li.Item, li.Quantity, money(li.UnitCost), money(li.Total)})
		}
		bd.AppendFooter(table.Row{"", "", "", "", money(b.BreakdownTotal())})
		bd.Render()
	}

	fmt.Fprintf(w, "Total budget: %s\n", money(b.TotalBudget))
}

func renderAllocations(w io.Writer, allocs []model.Allocation) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "To", "Category", "Allocated", "Spent", "Remaining", "By"})
	for _, a := range allocs {
		tw.AppendRow(table.Row{a.ID, a.AllocatedTo, a.Category,
			money(a.AllocatedAmount), money(a.ActualSpent), money(a.Remaining()), a.AllocatedBy})
	}
	tw.Render()
}

func renderDLQ(w io.Writer, entries []resilience.DLQEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Stage", "Source", "Type", "Retries", "Next retry", "Error"})
	for _, e := range entries {
		tw.AppendRow(table.Row{e.ID, e.Stage, e.SourceID, e.ErrorType,
			fmt.Sprintf("%d/%d", e.RetryCount, e.MaxRetries), shortTime(e.NextRetryAt), truncate(e.Error, 50)})
	}
	tw.Render()
}
