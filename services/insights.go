package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"

	"devleads/models"
	"devleads/utils"
)

const topLeadCount = 5

// InsightReport is the end-of-run view of a pipeline run.
type InsightReport struct {
	Summary      *models.RunSummary
	TopLeads     []*models.Property
	AveragePrice float64
	PricedCount  int
}

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate ranks leads by ROI score and computes price statistics.
func (s *InsightService) Generate(summary *models.RunSummary, records []*models.Property) *InsightReport {
	report := &InsightReport{Summary: summary}

	var total float64
	var scored []*models.Property
	for _, p := range records {
		if p.Price != nil && *p.Price > 0 {
			report.PricedCount++
			total += *p.Price
		}
		if p.ROIScore != nil {
			scored = append(scored, p)
		}
	}
	if report.PricedCount > 0 {
		report.AveragePrice = round2(total / float64(report.PricedCount))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].ROIScore > *scored[j].ROIScore
	})
	if len(scored) > topLeadCount {
		scored = scored[:topLeadCount]
	}
	report.TopLeads = scored
	return report
}

// Render formats the report as plain-text tables.
func (s *InsightService) Render(r *InsightReport) string {
	var b strings.Builder
	sum := r.Summary

	overview := newTable("Run")
	overview.AppendRows([]table.Row{
		{"Run ID", sum.RunID},
		{"Mode", sum.Mode},
		{"Started", sum.StartedAt.Format(time.RFC3339)},
		{"Duration", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second)},
		{"Rows processed", sum.Processed},
		{"Rows inserted", sum.Inserted},
		{"Dropped (no url)", sum.DroppedNoURL},
	})
	if r.PricedCount > 0 {
		overview.AppendRow(table.Row{"Average price", fmt.Sprintf("$%.2f", r.AveragePrice)})
	}
	b.WriteString(overview.Render())
	b.WriteString("\n\n")

	labels := newTable("Label", "Count")
	for _, l := range []models.Label{models.LabelHigh, models.LabelMedium, models.LabelLow} {
		labels.AppendRow(table.Row{l, sum.LabelCounts[l]})
	}
	b.WriteString(labels.Render())
	b.WriteString("\n\n")

	leads := newTable("#", "Address", "Label", "Price", "ROI %", "Score")
	if len(r.TopLeads) == 0 {
		leads.AppendRow(table.Row{"-", "No scored leads", "", "", "", ""})
	}
	for i, p := range r.TopLeads {
		leads.AppendRow(table.Row{
			i + 1, truncate(p.Address, 38), p.Label, money(p.Price), money(p.ROIPercentage), *p.ROIScore,
		})
	}
	b.WriteString(leads.Render())
	b.WriteString("\n\n")

	sources := newTable("Source", "Rows")
	for _, name := range sortedKeys(sum.SourceCounts) {
		sources.AppendRow(table.Row{name, sum.SourceCounts[name]})
	}
	b.WriteString(sources.Render())

	if len(sum.Degraded) > 0 {
		deg := newTable("Degraded stage", "Records")
		for _, stage := range sortedKeys(sum.Degraded) {
			deg.AppendRow(table.Row{stage, sum.Degraded[stage]})
		}
		b.WriteString("\n\n")
		b.WriteString(deg.Render())
	}

	artifacts := newTable("Artifact", "Location")
	for _, a := range [][2]string{
		{"Classified CSV", sum.ClassifiedCSV},
		{"Leads CSV", sum.LeadsCSV},
		{"Leads XLSX", sum.LeadsXLSX},
		{"Map", sum.MapPath},
		{"Sheet", sum.SheetURL},
	} {
		if a[1] != "" {
			artifacts.AppendRow(table.Row{a[0], a[1]})
		}
	}
	b.WriteString("\n\n")
	b.WriteString(artifacts.Render())

	if len(sum.SinkErrors) > 0 {
		errs := newTable("Failed sink", "Error")
		for _, sink := range sortedKeys(sum.SinkErrors) {
			errs.AppendRow(table.Row{sink, truncate(sum.SinkErrors[sink], 80)})
		}
		b.WriteString("\n\n")
		b.WriteString(errs.Render())
	}
	return b.String()
}

// Print writes the rendered report to w.
func (s *InsightService) Print(w io.Writer, r *InsightReport) {
	fmt.Fprintf(w, "\n%s\n\n", s.Render(r))
}

func newTable(header ...any) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row(header))
	t.SetStyle(table.StyleRounded)
	return t
}

func money(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *f)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	end := max - 3
	// back off to a rune boundary
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + "..."
}
