package render

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/justapithecus/pulse/types"
)

// Columns of the dashboard table.
var Columns = []string{"VIEW", "STATUS", "ITEMS", "ELAPSED", "DETAIL"}

// maxDetail truncates the DETAIL column.
const maxDetail = 72

// Row is one formatted dashboard row.
type Row struct {
	View    string
	Status  string
	Items   string
	Elapsed string
	Detail  string
}

func (r Row) cells() []string {
	return []string{r.View, r.Status, r.Items, r.Elapsed, r.Detail}
}

// Rows formats each result of snap in order.
func Rows(snap *types.Snapshot) []Row {
	results := snap.Results()
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, Row{
			View:    string(r.View),
			Status:  r.Status(),
			Items:   Items(r),
			Elapsed: Elapsed(r.Elapsed),
			Detail:  Detail(r),
		})
	}
	return rows
}

// Items returns the humanized item count of a successful result, or "-".
func Items(r types.ViewResult) string {
	n, ok := ItemCount(r.Data)
	if !r.OK() || !ok {
		return "-"
	}
	return humanize.Comma(int64(n))
}

// ItemCount counts slice and map payloads. Other payloads count as one item;
// nil reports ok=false.
func ItemCount(data types.ViewData) (int, bool) {
	if data == nil {
		return 0, false
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len(), true
	default:
		return 1, true
	}
}

// Elapsed humanizes a duration with SI prefixes ("120 ms", "1.5 s").
func Elapsed(d time.Duration) string {
	return humanize.SIWithDigits(d.Seconds(), 1, "s")
}

// Detail describes a failure. Successful results have no detail.
func Detail(r types.ViewResult) string {
	if r.OK() {
		return ""
	}
	detail := r.Err.Message
	if r.Err.Kind == types.KindRateLimited && r.Err.RetryAfter != nil {
		detail = strings.TrimSpace(detail + " (retry in " + r.Err.RetryAfter.Round(time.Second).String() + ")")
	}
	if len(detail) > maxDetail {
		detail = detail[:maxDetail-3] + "..."
	}
	return detail
}

// Summary is the one-line footer under the table.
func Summary(snap *types.Snapshot, now time.Time) string {
	sum := snap.Summary()
	parts := []string{
		fmt.Sprintf("%d/%d ok", sum.Succeeded, sum.Total),
	}
	if sum.TimedOut > 0 {
		parts = append(parts, fmt.Sprintf("%d timed out", sum.TimedOut))
	}
	parts = append(parts, "took "+Elapsed(snap.TotalElapsed()))
	if !snap.StartedAt().IsZero() {
		parts = append(parts, "started "+humanize.RelTime(snap.StartedAt(), now, "ago", "from now"))
	}
	if id := snap.RunID(); id != "" {
		parts = append(parts, "run "+id)
	}
	return strings.Join(parts, " · ")
}

// Dashboard renders the snapshot table and summary line. Padding is applied
// before styling so ANSI escapes never skew column widths.
func Dashboard(snap *types.Snapshot, color bool) string {
	return DashboardAt(snap, color, time.Now())
}

// DashboardAt is Dashboard with an explicit clock.
func DashboardAt(snap *types.Snapshot, color bool, now time.Time) string {
	rows := Rows(snap)

	widths := make([]int, len(Columns))
	for i, c := range Columns {
		widths[i] = lipgloss.Width(c)
	}
	for _, row := range rows {
		for i, cell := range row.cells() {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	style := func(s lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	b.WriteString(style(HeaderStyle, formatLine(Columns, widths)))
	b.WriteByte('\n')
	for _, row := range rows {
		cells := row.cells()
		padded := make([]string, len(cells))
		for i, cell := range cells {
			padded[i] = pad(cell, widths[i])
		}
		if color {
			padded[1] = StatusStyle(row.Status).Render(padded[1])
			padded[4] = MutedStyle.Render(padded[4])
		}
		b.WriteString(strings.TrimRight(strings.Join(padded, "  "), " "))
		b.WriteByte('\n')
	}
	if len(rows) == 0 {
		b.WriteString("(no views selected)\n")
	}
	b.WriteByte('\n')
	b.WriteString(style(MutedStyle, Summary(snap, now)))
	return b.String()
}

func formatLine(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = pad(c, widths[i])
	}
	return strings.TrimRight(strings.Join(padded, "  "), " ")
}

func pad(s string, width int) string {
	if n := width - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
