// Package parser reads TDX (通达信) watchlist exports. Despite the .xls
// file names the exports are tab-separated GBK text, or occasionally an
// HTML table; there is no binary Excel involved.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// indexCodePrefix marks market-index rows in TDX watchlists.
const indexCodePrefix = "99"

// defaultGroupName collects stocks that appear before any group marker.
const defaultGroupName = "未分类"

var dateInName = regexp.MustCompile(`(\d{4})[-_.]?(\d{2})[-_.]?(\d{2})`)

// Parser turns TDX export files into the shape the importer consumes.
type Parser struct {
	logger *logger.Logger
	now    func() time.Time
}

// New creates a Parser.
func New(log *logger.Logger) *Parser {
	return &Parser{
		logger: log,
		now:    time.Now,
	}
}

// ParseFile reads and parses one export file. The trade date comes from
// the file name (20260821 or 2026-08-21 anywhere in it); files without a
// date default to today.
func (p *Parser) ParseFile(path string) (*contracts.ParsedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export file: %w", err)
	}

	return p.ParseUpload(filepath.Base(path), data)
}

// ParseUpload parses in-memory export content, taking the trade date from
// the given file name the same way ParseFile does.
func (p *Parser) ParseUpload(name string, data []byte) (*contracts.ParsedFile, error) {
	parsed, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	parsed.Date = dateFromFileName(name)
	if parsed.Date == "" {
		parsed.Date = p.now().Format(contracts.DateFormat)
	}

	p.logger.WithFields(map[string]interface{}{
		"file":   name,
		"date":   parsed.Date,
		"groups": len(parsed.Groups),
		"stocks": len(parsed.Stocks),
	}).Debug("Parsed TDX export")

	return parsed, nil
}

// Parse parses raw export content. The returned ParsedFile has no date;
// ParseFile fills it in.
func (p *Parser) Parse(data []byte) (*contracts.ParsedFile, error) {
	text := decode(data)

	var rows [][]string
	if looksLikeHTML(text) {
		rows = rowsFromHTML(text)
	} else {
		rows = rowsFromText(text)
	}

	return buildParsedFile(rows)
}

// decode converts GBK content to UTF-8. TDX exports are GBK; content
// that is already valid UTF-8 is used as is.
func decode(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func looksLikeHTML(text string) bool {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	return strings.HasPrefix(trimmed, "<")
}

func rowsFromText(text string) [][]string {
	lines := strings.Split(text, "\n")
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		cells := strings.Split(line, "\t")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		rows = append(rows, cells)
	}
	return rows
}

// buildParsedFile walks the rows: the header row maps columns, group
// marker rows (code cell not starting with a digit) switch the current
// formula group, index rows (code 99xxxx) become the benchmark, and
// everything else is a stock.
func buildParsedFile(rows [][]string) (*contracts.ParsedFile, error) {
	headerIdx, setters, err := findHeader(rows)
	if err != nil {
		return nil, err
	}

	parsed := &contracts.ParsedFile{}
	groupIdx := make(map[string]int)
	currentGroup := defaultGroupName

	for _, row := range rows[headerIdx+1:] {
		first := cleanCode(row[0])
		if strings.HasPrefix(first, "#") {
			continue
		}

		if !startsWithDigit(first) {
			// Group marker row. Annotation rows about duplicates or the
			// data source are not groups.
			name := first
			if name == "" && len(row) > 1 {
				name = row[1]
			}
			if name == "" || strings.Contains(name, "重复") || strings.Contains(name, "数据来源") {
				continue
			}
			currentGroup = name
			continue
		}

		rec := &contracts.DailyRecord{}
		for i, cell := range row {
			if i >= len(setters) {
				break
			}
			if set := setters[i]; set != nil {
				set(rec, cell)
			}
		}
		if rec.Code == "" {
			continue
		}

		if strings.HasPrefix(rec.Code, indexCodePrefix) {
			// Market index: benchmark, not a pool member. First one wins.
			if parsed.Index == nil {
				parsed.Index = &contracts.IndexSnapshot{
					Code:   rec.Code,
					Name:   rec.Name,
					Price:  rec.Close,
					Change: rec.Change,
				}
			}
			continue
		}

		idx, ok := groupIdx[currentGroup]
		if !ok {
			idx = len(parsed.Groups)
			groupIdx[currentGroup] = idx
			parsed.Groups = append(parsed.Groups, contracts.StockGroup{Name: currentGroup})
		}

		rec.Formulas = []string{currentGroup}
		parsed.Groups[idx].Stocks = append(parsed.Groups[idx].Stocks, rec)
	}

	parsed.Stocks = flattenGroups(parsed.Groups)
	return parsed, nil
}

func findHeader(rows [][]string) (int, []func(*contracts.DailyRecord, string), error) {
	for i, row := range rows {
		hasCode, hasName := false, false
		for _, cell := range row {
			switch cell {
			case "代码":
				hasCode = true
			case "名称":
				hasName = true
			}
		}
		if !hasCode || !hasName {
			continue
		}

		setters := make([]func(*contracts.DailyRecord, string), len(row))
		for j, cell := range row {
			setters[j] = columnSetters[cell]
		}
		return i, setters, nil
	}
	return 0, nil, fmt.Errorf("no header row with 代码/名称 columns")
}

// flattenGroups deduplicates by code. The first occurrence's fields win;
// later occurrences only contribute their group membership.
func flattenGroups(groups []contracts.StockGroup) []*contracts.DailyRecord {
	var flat []*contracts.DailyRecord
	byCode := make(map[string]*contracts.DailyRecord)

	for _, group := range groups {
		for _, stock := range group.Stocks {
			if existing, ok := byCode[stock.Code]; ok {
				existing.Formulas = append(existing.Formulas, group.Name)
				continue
			}

			merged := *stock
			merged.Formulas = []string{group.Name}
			byCode[stock.Code] = &merged
			flat = append(flat, &merged)
		}
	}
	return flat
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func dateFromFileName(name string) string {
	m := dateInName.FindStringSubmatch(name)
	if m == nil {
		return ""
	}

	date := fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
	if _, err := time.Parse(contracts.DateFormat, date); err != nil {
		return ""
	}
	return date
}
