package collection

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/apperr"
)

// DateLayout is the purchase date format accepted in CSV imports.
const DateLayout = "2006-01-02"

// csvColumns maps accepted header names to record fields.
var csvColumns = map[string]string{
	"name":           "name",
	"card":           "name",
	"card_name":      "name",
	"set":            "set",
	"set_code":       "set",
	"edition":        "set",
	"quantity":       "quantity",
	"count":          "quantity",
	"qty":            "quantity",
	"purchase_price": "price",
	"price":          "price",
	"purchase_date":  "date",
	"date":           "date",
}

// ParseCSV reads import records from CSV with a header row. The name and
// quantity columns are required; set, purchase_price and purchase_date
// (YYYY-MM-DD) are optional. Blank cells leave the field unset.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int)
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if field, ok := csvColumns[key]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	for _, required := range []string{"name", "quantity"} {
		if _, ok := index[required]; !ok {
			return nil, apperr.Input("CSV is missing a required column", required)
		}
	}

	cell := func(row []string, field string) string {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}

		entity := fmt.Sprintf("line %d", line)
		rec := Record{
			Name:    cell(row, "name"),
			SetCode: cell(row, "set"),
		}

		qty, err := strconv.Atoi(cell(row, "quantity"))
		if err != nil {
			return nil, apperr.Input("invalid quantity", entity).Wrap(err)
		}
		rec.Quantity = qty

		if s := strings.TrimPrefix(cell(row, "price"), "$"); s != "" {
			price, err := decimal.NewFromString(s)
			if err != nil {
				return nil, apperr.Input("invalid purchase price", entity).Wrap(err)
			}
			rec.PurchasePrice = &price
		}
		if s := cell(row, "date"); s != "" {
			date, err := time.ParseInLocation(DateLayout, s, time.UTC)
			if err != nil {
				return nil, apperr.Input("invalid purchase date", entity).Wrap(err)
			}
			rec.PurchaseDate = &date
		}

		records = append(records, rec)
	}
	return records, nil
}
