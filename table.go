package main

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"sjsage522/psa10finder/internal/card"
	"sjsage522/psa10finder/internal/store"
)

type column struct {
	header string
	align  text.Align
}

var historyColumns = []column{
	{"ID", text.AlignRight},
	{"Card", text.AlignLeft},
	{"Price", text.AlignRight},
	{"Listings", text.AlignRight},
	{"Scraped At", text.AlignLeft},
	{"URL", text.AlignLeft},
}

var fieldColumns = []column{
	{"Field", text.AlignLeft},
	{"Value", text.AlignLeft},
}

// renderTable draws rows under columns; short rows are padded with blanks.
func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.header
		configs[i] = table.ColumnConfig{Number: i + 1, Align: col.align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

func renderHistory(records []store.PriceRecord) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		price := "-"
		if rec.Price != nil {
			price = "$" + strconv.FormatFloat(*rec.Price, 'f', -1, 64)
		}
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.CardName,
			price,
			strconv.Itoa(rec.ItemCount),
			rec.ScrapedAt.UTC().Format(historyTimeLayout),
			rec.URL,
		})
	}
	return renderTable(historyColumns, rows)
}

func renderQuery(q card.Query) string {
	rows := [][]string{
		{"Subject term", q.SubjectTerm},
		{"Normalized name", q.NormalizedName},
		{"Mapped set", q.MappedSet},
		{"Set tokens", strings.Join(q.SetTokens, ", ")},
		{"Number token", q.NumberToken},
	}
	return renderTable(fieldColumns, rows)
}

