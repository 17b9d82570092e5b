package themis

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/AdeilsonR/puppeteer-themis/internal/browser"
)

// fallbackRows is used when the configured row selector matches nothing.
const fallbackRows = "tr"

// Row is the trimmed text of each cell of one rendered result row, with the
// reference that addresses the same row on the live page.
type Row struct {
	Ref   browser.RowRef
	Cells []string
}

// ParseRows extracts the rows matching rowSelector inside the first element
// matching tableSelector of an HTML fragment. When rowSelector matches nothing,
// every <tr> of the table is considered instead. Row positions count every
// element the selector in use matches, header rows included, so they resolve
// to the same element through browser.RowRef.
func ParseRows(fragment, tableSelector, rowSelector string) ([]Row, error) {
	if strings.TrimSpace(fragment) == "" {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("failed to parse result table: %w", err)
	}

	root := doc.Selection
	if tableSelector != "" {
		if table := doc.Find(tableSelector).First(); table.Length() > 0 {
			root = table
		}
	}

	rowsIn := rowSelector
	var selection *goquery.Selection
	if rowsIn != "" {
		selection = root.Find(rowsIn)
	}
	if selection == nil || selection.Length() == 0 {
		rowsIn = fallbackRows
		selection = root.Find(rowsIn)
	}

	var rows []Row
	selection.Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
			return strings.Join(strings.Fields(td.Text()), " ")
		})
		if len(cells) == 0 {
			// Header rows carry only <th>.
			return
		}
		rows = append(rows, Row{
			Ref:   browser.RowRef{Table: tableSelector, Rows: rowsIn, Index: i},
			Cells: cells,
		})
	})
	return rows, nil
}

// MatchRow returns the record of the first row having a cell that contains
// caseID. The matching cell is the case number; the following three cells are
// type, last update and status.
func MatchRow(rows []Row, caseID string) (*SearchResult, bool) {
	needle := strings.TrimSpace(caseID)
	if needle == "" {
		return nil, false
	}
	for _, row := range rows {
		for at, cell := range row.Cells {
			if strings.Contains(cell, needle) {
				return &SearchResult{Record: recordFromCells(row.Cells, at), Row: row.Ref}, true
			}
		}
	}
	return nil, false
}

func recordFromCells(cells []string, at int) CaseRecord {
	field := func(i int) string {
		if i < len(cells) && strings.TrimSpace(cells[i]) != "" {
			return cells[i]
		}
		return NotInformed
	}
	return CaseRecord{
		Number:     field(at),
		Type:       field(at + 1),
		LastUpdate: field(at + 2),
		Status:     field(at + 3),
	}
}
