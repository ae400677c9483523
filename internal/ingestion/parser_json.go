package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/securebank/txwatch/internal/domain"
)

// ParseJSON parses an array of transactions in the API's own JSON shape.
func ParseJSON(data []byte) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	if err := json.Unmarshal(data, &txns); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return txns, nil
}
