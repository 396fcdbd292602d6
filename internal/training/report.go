package training

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mounikasaka1/hackai/internal/model"
)

// RenderReport writes a human-readable report table.
func RenderReport(w io.Writer, r *Report) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Training report")
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"version", r.Version},
		{"examples", r.Examples},
		{"train / test", fmt.Sprintf("%d / %d", r.TrainSize, r.TestSize)},
		{"features", r.NumFeatures},
		{"duration", r.Duration.Round(time.Millisecond).String()},
	})
	tw.AppendSeparator()
	for _, target := range model.Targets() {
		acc, ok := r.Accuracy[target]
		if !ok {
			tw.AppendRow(table.Row{target + " accuracy", "n/a"})
			continue
		}
		tw.AppendRow(table.Row{target + " accuracy", fmt.Sprintf("%.2f%%", acc*100)})
	}
	if r.OutputDir != "" {
		tw.AppendFooter(table.Row{"artifact", r.OutputDir})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}
