package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// rowsFromHTML extracts table rows from an HTML-flavored export. Some
// TDX builds and broker terminals save the watchlist as a single-table
// HTML document with an .xls name.
func rowsFromHTML(text string) [][]string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil
	}

	var rows [][]string
	doc.Find("table").First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})

		empty := true
		for _, c := range cells {
			if c != "" {
				empty = false
				break
			}
		}
		if !empty {
			rows = append(rows, cells)
		}
	})
	return rows
}
