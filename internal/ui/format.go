package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/gosuri/uitable/util/strutil"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	defaultTermWidth = 80
	minColumnWidth   = 3
	columnGap        = "  "
	ellipsis         = "…"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultTermWidth
}

// DisplayWidth is the number of terminal cells s occupies. Color codes take
// none and CJK characters take two.
func DisplayWidth(s string) int {
	return strutil.StringWidth(s)
}

// TruncateWithEllipsis cuts s to at most width cells. A cut string loses
// its color codes.
func TruncateWithEllipsis(s string, width int) string {
	if DisplayWidth(s) <= width {
		return s
	}
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(strutil.Strip(s), width, ellipsis)
}

// PadRight pads s with spaces to width cells.
func PadRight(s string, width int) string {
	return strutil.PadRight(s, width, ' ')
}

// column is one table column. width is the preferred cell width; all
// columns shrink proportionally when the terminal is narrower.
type column struct {
	header string
	width  int
	right  bool
}

var (
	concertColumns = []column{
		{header: "ID", width: 8, right: true},
		{header: "Artist", width: 24},
		{header: "When", width: 20},
		{header: "Where", width: 24},
		{header: "Starts In", width: 10, right: true},
		{header: "", width: 4},
	}
	groupColumns = []column{
		{header: "#", width: 4, right: true},
		{header: "Artist", width: 40},
		{header: "Concerts", width: 8, right: true},
	}
)

func fitWidths(cols []column, available int) []int {
	want := len(columnGap) * (len(cols) - 1)
	for _, c := range cols {
		want += c.width
	}
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = c.width
		if want > available {
			widths[i] = max(c.width*available/want, minColumnWidth)
		}
	}
	return widths
}

// renderTable lays rows out under cols. Missing cells render empty.
func renderTable(cols []column, rows [][]string) string {
	widths := fitWidths(cols, termWidth())
	tbl := uitable.New()
	tbl.Separator = columnGap

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = Paint(RoleStrong, TruncateWithEllipsis(c.header, widths[i]))
		if c.right {
			tbl.RightAlign(i)
		}
	}
	tbl.AddRow(header...)
	for _, row := range rows {
		cells := make([]any, len(cols))
		for i := range cols {
			var v string
			if i < len(row) {
				v = row[i]
			}
			cells[i] = TruncateWithEllipsis(v, widths[i])
		}
		tbl.AddRow(cells...)
	}
	return tbl.String()
}

// PrintHeader prints title with a double rule under it.
func PrintHeader(title string) {
	title = TruncateWithEllipsis(title, termWidth()-2)
	fmt.Printf("\n%s\n%s\n\n", Paint(RoleStrong, title), Paint(RoleAccent, strings.Repeat("═", DisplayWidth(title))))
}

// PrintSection prints a section title.
func PrintSection(title string) {
	fmt.Printf("\n%s %s\n", Paint(RoleAccent, "◆"), Paint(RoleStrong, title))
}

// PrintKeyValue prints one aligned "key: value" line.
func PrintKeyValue(key, value string, role Role) {
	value = TruncateWithEllipsis(value, termWidth()-24)
	fmt.Printf("  %s %s\n", Paint(RoleAccent, PadRight(key+":", 20)), Paint(role, value))
}

// RenderLoading redraws a one-line spinner for label in place. An empty
// label clears the line.
func RenderLoading(label string, frame int) {
	width := termWidth()
	if label == "" {
		fmt.Printf("\r%s\r", strings.Repeat(" ", width-1))
		return
	}
	n := len(spinnerFrames)
	spinner := spinnerFrames[((frame%n)+n)%n]
	fmt.Printf("\r%s %s", Paint(RoleAccent, spinner), TruncateWithEllipsis(label, width-4))
}
