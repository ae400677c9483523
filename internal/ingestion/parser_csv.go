package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/securebank/txwatch/internal/domain"
)

var requiredColumns = []string{"id", "user_id", "amount"}

// ParseCSV parses a transaction export with a header row. Columns are
// matched by name and may appear in any order:
//
//	id,user_id,amount,location,device_id,status,risk_score,violations,reviewed_by,analyst_comment,created_at,reviewed_at
//
// Only id, user_id and amount are required. violations is a
// semicolon-separated list.
func ParseCSV(data []byte) ([]domain.Transaction, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var txns []domain.Transaction
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		if strings.Join(row, "") == "" {
			continue
		}

		amount, err := decimal.NewFromString(field("amount"))
		if err != nil {
			return nil, fmt.Errorf("line %d amount: %w", lineNum, err)
		}

		tx := domain.Transaction{
			ID:          field("id"),
			UserID:      field("user_id"),
			Amount:      amount,
			Location:    field("location"),
			DeviceID:    field("device_id"),
			Status:      domain.Status(strings.ToUpper(field("status"))),
			ReviewedBy:  field("reviewed_by"),
			AnalystNote: field("analyst_comment"),
		}

		if s := field("risk_score"); s != "" {
			if tx.RiskScore, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("line %d risk_score: %w", lineNum, err)
			}
		}
		if s := field("violations"); s != "" {
			for _, v := range strings.Split(s, ";") {
				if v = strings.TrimSpace(v); v != "" {
					tx.Violations = append(tx.Violations, v)
				}
			}
		}
		if s := field("created_at"); s != "" {
			if tx.CreatedAt, err = parseTime(s); err != nil {
				return nil, fmt.Errorf("line %d created_at: %w", lineNum, err)
			}
		}
		if s := field("reviewed_at"); s != "" {
			t, err := parseTime(s)
			if err != nil {
				return nil, fmt.Errorf("line %d reviewed_at: %w", lineNum, err)
			}
			tx.ReviewedAt = &t
		}

		txns = append(txns, tx)
	}

	return txns, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
	}
	return t, err
}
