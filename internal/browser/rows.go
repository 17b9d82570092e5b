// internal/browser/rows.go
package browser

import "fmt"

// RowRef addresses one row of a rendered table: the Index-th element matching
// Rows among the descendants of the first element matching Table. Rows is
// matched against the whole document, so it may name Table as an ancestor.
type RowRef struct {
	Table string
	Rows  string
	Index int
}

// elementPath returns a JavaScript expression evaluating to the first element
// matching selector inside the row, or null.
func (r RowRef) elementPath(selector string) string {
	return fmt.Sprintf(`(() => {
		const table = document.querySelector(%s);
		if (!table) return null;
		const row = table.querySelectorAll(%s)[%d];
		return row ? row.querySelector(%s) : null;
	})()`, jsString(r.Table), jsString(r.Rows), r.Index, jsString(selector))
}
