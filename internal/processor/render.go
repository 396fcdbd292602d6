package processor

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mounikasaka1/hackai/internal/domain"
)

// RenderSummary writes the summary as tables: totals, the per-category
// distributions and the recent high-severity messages.
func RenderSummary(w io.Writer, s Summary) {
	totals := newTable(w, "Batch summary")
	totals.AppendHeader(table.Row{"Metric", "Value"})
	totals.AppendRows([]table.Row{
		{"messages", s.TotalMessages},
		{"failed", s.Failed},
		{"potential crimes", s.PotentialCrimes},
		{"average severity", fmt.Sprintf("%.2f", s.AverageSeverity)},
	})
	totals.Render()

	dist := newTable(w, "Distribution")
	dist.AppendHeader(table.Row{"Dimension", "Value", "Count"})
	appendCounts(dist, "incident type", s.ByIncidentType)
	dist.AppendSeparator()
	appendCounts(dist, "emotion", s.ByEmotion)
	dist.AppendSeparator()
	for sev := domain.MinSeverity; sev <= domain.MaxSeverity; sev++ {
		if n := s.BySeverity[sev]; n > 0 {
			dist.AppendRow(table.Row{"severity", sev, n})
		}
	}
	dist.Render()

	if len(s.RecentHighSeverity) == 0 {
		return
	}
	recent := newTable(w, "Recent high-severity messages")
	recent.AppendHeader(table.Row{"Time", "Sender", "Incident", "Severity", "Message"})
	for _, r := range s.RecentHighSeverity {
		recent.AppendRow(table.Row{r.FormattedTimestamp, r.UserName, r.IncidentType, r.SeverityScore, r.NarrativeEntry})
	}
	recent.Render()
}

func newTable(w io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(title)
	tw.SetStyle(table.StyleLight)
	return tw
}

// appendCounts adds rows in descending count order, ties by name.
func appendCounts(tw table.Writer, dim string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		tw.AppendRow(table.Row{dim, k, counts[k]})
	}
}
