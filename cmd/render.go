package main

import (
	"fmt"
	"io"
	"quickcommerce/internal/analytics"
	"quickcommerce/internal/model"
	"quickcommerce/internal/services/auth"
	"quickcommerce/internal/services/insights"
	"quickcommerce/internal/services/purchases"
	"strings"
	"text/tabwriter"
	"time"
)

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func renderIdentity(w io.Writer, id *auth.Identity, now time.Time) {
	if id.User != nil {
		fmt.Fprintf(w, "User:    %s <%s>\n", id.User.DisplayName(), id.User.Email)
	}
	switch {
	case id.AccessExpiresAt.IsZero():
		fmt.Fprintln(w, "Access:  expiry unknown")
	case id.Expired(now):
		fmt.Fprintf(w, "Access:  expired %s ago (refreshed on next call)\n", now.Sub(id.AccessExpiresAt).Round(time.Second))
	default:
		fmt.Fprintf(w, "Access:  valid for %s\n", id.AccessExpiresAt.Sub(now).Round(time.Second))
	}
	fmt.Fprintf(w, "Refresh: %t\n", id.HasRefresh)
}

func renderKPIs(w io.Writer, kpis []analytics.KPI) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range kpis {
		fmt.Fprintf(tw, "%s\t%s\n", k.Title, k.Value)
	}
	_ = tw.Flush()
}

func renderSummary(w io.Writer, s *model.Summary) {
	renderKPIs(w, analytics.SummaryKPIs(*s))
}

func renderHeatmap(w io.Writer, hm *insights.HeatmapResult) {
	if hm.Fallback {
		fmt.Fprintln(w, "(sample data, heatmap unavailable)")
	}

	var peak float64
	for _, row := range hm.Matrix {
		for _, v := range row {
			if v > peak {
				peak = v
			}
		}
	}

	shades := []rune(" .:-=+*#%@")
	fmt.Fprintln(w, "     0     6     12    18   23")
	for d, row := range hm.Matrix {
		var b strings.Builder
		for _, v := range row {
			i := 0
			if peak > 0 {
				i = int(v / peak * float64(len(shades)-1))
			}
			b.WriteRune(shades[i])
		}
		fmt.Fprintf(w, "%s  %s\n", weekdays[d%len(weekdays)], b.String())
	}
}

func renderTrends(w io.Writer, t *model.Trends) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tSPEND")
	for _, p := range t.Points {
		fmt.Fprintf(tw, "%s\t%.2f\n", p.Period, p.Spend)
	}
	_ = tw.Flush()
}

func renderPreview(w io.Writer, p purchases.Preview) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(p.Header, "\t"))
	for _, row := range p.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d rows\n", p.Total)
}

func renderUpload(w io.Writer, res *model.UploadResult) {
	fmt.Fprintf(w, "Upload successful: %d rows inserted, %d skipped.\n", res.Inserted, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}

func renderProfile(w io.Writer, p *model.Profile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name\t%s\n", p.Name)
	fmt.Fprintf(tw, "Email\t%s\n", p.Email)
	fmt.Fprintf(tw, "Weekly budget\t%.2f\n", p.WeeklyBudget)
	fmt.Fprintf(tw, "Health goals\t%s\n", p.HealthGoals)
	fmt.Fprintf(tw, "Diet\t%s\n", strings.Join(p.DietaryPreferences, ", "))
	_ = tw.Flush()
}

func renderDashboard(w io.Writer, d *insights.Dashboard) {
	renderKPIs(w, d.KPIs)

	if d.Nutrition != nil {
		n := d.Nutrition
		fmt.Fprintf(w, "\nWeekly calories: %.1fk / %.1fk\n", float64(n.Calories)/1000, float64(n.CalorieGoal)/1000)
		fmt.Fprintf(w, "Protein intake:  %dg / %dg\n", n.Protein, n.ProteinGoal)
		if n.ProteinProgress() >= 90 {
			fmt.Fprintln(w, "Excellent protein progress!")
		} else {
			fmt.Fprintln(w, "Good progress on nutrition goals")
		}
	}

	if d.Demo {
		fmt.Fprintln(w, "\nExpiry alerts:")
		if len(d.Expiring) == 0 {
			fmt.Fprintln(w, "  All items fresh! No expiry concerns this week.")
		}
		for _, e := range d.Expiring {
			fmt.Fprintf(w, "  [%s] %s - best in %d days. %s\n", e.Urgency, e.Name, e.DaysUntil, e.Suggestion)
		}

		fmt.Fprintln(w, "\nSmart cart:")
		for _, it := range d.Cart {
			fmt.Fprintf(w, "  [%s] %s - %g%s (%s)\n", it.Priority, it.Item, it.Quantity, it.Unit, it.Reason)
		}
	}

	if d.Heatmap != nil {
		fmt.Fprintln(w)
		renderHeatmap(w, d.Heatmap)
	}
}
