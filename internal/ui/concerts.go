package ui

import (
	"fmt"
	"strconv"
)

// ConcertRow is one display line of the concert table. Values are already
// placeholder-substituted.
type ConcertRow struct {
	ID        string
	Artist    string
	Time      string
	Location  string
	Countdown string
	Marks     string
}

// GroupRow is one display line of the artist table.
type GroupRow struct {
	Artist string
	Count  int
}

// PrintConcertTable renders concerts as a table, or an info line when
// there is nothing to show.
func PrintConcertTable(rows []ConcertRow, empty string) {
	if len(rows) == 0 {
		PrintInfo(empty)
		return
	}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{r.ID, r.Artist, r.Time, r.Location, r.Countdown, r.Marks})
	}
	fmt.Println(renderTable(concertColumns, cells))
}

// PrintGroupTable renders artist groups with their concert counts.
func PrintGroupTable(rows []GroupRow, empty string) {
	if len(rows) == 0 {
		PrintInfo(empty)
		return
	}
	cells := make([][]string, 0, len(rows))
	for i, r := range rows {
		cells = append(cells, []string{strconv.Itoa(i + 1), r.Artist, strconv.Itoa(r.Count)})
	}
	fmt.Println(renderTable(groupColumns, cells))
}

// PrintConcertDetail renders the detail view of one concert.
func PrintConcertDetail(row ConcertRow, fields [][2]string) {
	PrintHeader(SymbolMusic + " " + row.Artist)
	PrintKeyValue("ID", row.ID, RoleStrong)
	PrintKeyValue("When", row.Time, RolePlain)
	PrintKeyValue("Where", row.Location, RolePlain)
	PrintKeyValue("Starts in", row.Countdown, RolePlain)
	for _, f := range fields {
		PrintKeyValue(f[0], f[1], RolePlain)
	}
	if row.Marks != "" {
		PrintKeyValue("Status", row.Marks, RolePlain)
	}
}
