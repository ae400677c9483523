package ingestion

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securebank/txwatch/internal/domain"
	"github.com/securebank/txwatch/internal/repository"
)

// thresholdScorer holds everything at or above 1000.
type thresholdScorer struct{}

func (thresholdScorer) Score(amount decimal.Decimal) (domain.Verdict, error) {
	if amount.GreaterThanOrEqual(decimal.NewFromInt(1000)) {
		return domain.Verdict{Status: domain.StatusSuspicious, RiskScore: 60, Violations: []string{"AMOUNT_THRESHOLD"}}, nil
	}
	return domain.Verdict{Status: domain.StatusApproved, RiskScore: 5, Violations: []string{}}, nil
}

var importTime = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *repository.TransactionRepo) {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewTransactionRepo(db)
	svc := NewService(repo, thresholdScorer{}, zerolog.Nop())
	svc.now = func() time.Time { return importTime }
	return svc, repo
}

const sampleCSV = `id,user_id,amount,status,reviewed_by,violations,created_at,reviewed_at
tx1,user_1,250.00,,,,2026-01-10T09:00:00Z,
tx2,user_1,4200.50,APPROVED,analyst_1,AMOUNT_THRESHOLD;NEW_DEVICE,2026-01-11,2026-01-11T12:00:00Z
tx3,user_2,1500,,,,,
`

func TestParseCSV(t *testing.T) {
	txns, err := ParseCSV([]byte(sampleCSV))
	require.NoError(t, err)
	require.Len(t, txns, 3)

	assert.Equal(t, "tx2", txns[1].ID)
	assert.True(t, decimal.RequireFromString("4200.5").Equal(txns[1].Amount))
	assert.Equal(t, domain.StatusApproved, txns[1].Status)
	assert.Equal(t, "analyst_1", txns[1].ReviewedBy)
	assert.Equal(t, []string{"AMOUNT_THRESHOLD", "NEW_DEVICE"}, txns[1].Violations)
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), txns[1].CreatedAt)
	require.NotNil(t, txns[1].ReviewedAt)

	assert.Equal(t, domain.Status(""), txns[0].Status)
	assert.Nil(t, txns[0].ReviewedAt)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"missing amount column", "id,user_id\ntx1,user_1\n"},
		{"bad amount", "id,user_id,amount\ntx1,user_1,lots\n"},
		{"bad risk score", "id,user_id,amount,risk_score\ntx1,user_1,5,high\n"},
		{"bad date", "id,user_id,amount,created_at\ntx1,user_1,5,yesterday\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestImport_CSV(t *testing.T) {
	svc, repo := newTestService(t)

	res, err := svc.Import([]byte(sampleCSV), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Format: FormatCSV, RecordsParsed: 3, RecordsImported: 3, Scored: 2}, res)

	tx1, err := repo.GetByID("tx1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, tx1.Status)
	assert.Empty(t, tx1.ReviewedBy)

	tx3, err := repo.GetByID("tx3")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspicious, tx3.Status)
	assert.Equal(t, 60, tx3.RiskScore)
	assert.True(t, importTime.Equal(tx3.CreatedAt))

	tx2, err := repo.GetByID("tx2")
	require.NoError(t, err)
	assert.Equal(t, "analyst_1", tx2.ReviewedBy, "explicit status is kept")

	res, err = svc.Import([]byte(sampleCSV), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RecordsImported)
	assert.Equal(t, 3, res.DuplicatesSkipped)
}

func TestImport_JSON(t *testing.T) {
	svc, repo := newTestService(t)

	data := `[
		{"id": "j1", "userId": "user_9", "amount": "75.25", "status": "PENDING"},
		{"id": "j2", "userId": "user_9", "amount": 3000}
	]`
	res, err := svc.Import([]byte(data), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecordsImported)
	assert.Equal(t, 1, res.Scored)

	txns, err := repo.ListByUser("user_9")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, domain.StatusPending, txns[0].Status)
	assert.Equal(t, domain.StatusSuspicious, txns[1].Status)
}

func TestImport_RejectsBadRows(t *testing.T) {
	svc, repo := newTestService(t)

	tests := []struct {
		name string
		data string
	}{
		{"missing id", `[{"userId": "u", "amount": 5}]`},
		{"missing user", `[{"id": "x", "amount": 5}]`},
		{"non-positive amount", `[{"id": "x", "userId": "u", "amount": 0}]`},
		{"unknown status", `[{"id": "x", "userId": "u", "amount": 5, "status": "LOST"}]`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Import([]byte(tt.data), FormatJSON)
			assert.Error(t, err)
		})
	}

	_, err := svc.Import([]byte(`[]`), "xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, count, "failed imports store nothing")
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("testdata/transactions.JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = FormatFromPath("export.csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = FormatFromPath("export.xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSeedIfEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	n, err := svc.SeedIfEmpty(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = svc.SeedIfEmpty(path)
	require.NoError(t, err)
	assert.Zero(t, n, "populated store is left alone")

	other, _ := newTestService(t)
	_, err = other.SeedIfEmpty(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSeedIfEmpty_RepositorySeedFile(t *testing.T) {
	svc, repo := newTestService(t)

	n, err := svc.SeedIfEmpty(filepath.Join("..", "..", "testdata", "transactions.json"))
	require.NoError(t, err)
	assert.Positive(t, n)

	txns, err := repo.List(repository.TransactionFilter{Limit: 1000})
	require.NoError(t, err)
	for _, tx := range txns {
		assert.True(t, tx.Status.Valid(), tx.ID)
		if tx.Status.Terminal() && tx.Amount.GreaterThanOrEqual(decimal.NewFromInt(1500)) {
			assert.NotEmpty(t, tx.ReviewedBy, "%s held transfers are analyst-reviewed", tx.ID)
		}
	}
}
