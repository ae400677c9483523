package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/securebank/txwatch/internal/domain"
	"github.com/securebank/txwatch/internal/sandbox"
)

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	// Date range: 2026-01-05 to 2026-01-18.
	startDate := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)
	dayRange := int(endDate.Sub(startDate).Hours() / 24)

	locations := []string{"Bogota", "Medellin", "Cali", "Barranquilla", "Cartagena"}
	analysts := []string{"analyst_ana", "analyst_luis", "analyst_sofia"}
	scorer := sandbox.Scorer{}

	var allTxns []domain.Transaction

	for u := 1; u <= 5; u++ {
		userID := fmt.Sprintf("user_%03d", u)
		deviceID := fmt.Sprintf("mobile_%04X", rng.Intn(1<<16))

		for i := 1; i <= 8; i++ {
			day := rng.Intn(dayRange)
			createdAt := startDate.AddDate(0, 0, day).Add(
				time.Duration(rng.Intn(24))*time.Hour + time.Duration(rng.Intn(60))*time.Minute,
			)

			// Amount between 5.00 and 4000.00, one in four above the review threshold.
			cents := int64(500 + rng.Intn(140000))
			if rng.Float64() < 0.25 {
				cents = int64(150000 + rng.Intn(250000))
			}
			amount := decimal.New(cents, -2)

			verdict, err := scorer.Score(amount)
			if err != nil {
				panic(err)
			}

			txn := domain.Transaction{
				ID:         fmt.Sprintf("TX-%s-%02d", userID, i),
				UserID:     userID,
				Amount:     amount,
				Location:   locations[rng.Intn(len(locations))],
				DeviceID:   deviceID,
				Status:     verdict.Status,
				RiskScore:  verdict.RiskScore,
				Violations: verdict.Violations,
				CreatedAt:  createdAt,
			}

			// Held transfers: 40% still waiting, 35% approved, 25% rejected.
			if txn.Status == domain.StatusSuspicious {
				roll := rng.Float64()
				if roll >= 0.40 {
					txn.Status = domain.StatusApproved
					if roll >= 0.75 {
						txn.Status = domain.StatusRejected
					}
					reviewedAt := createdAt.Add(time.Duration(rng.Intn(240)+5) * time.Minute)
					txn.ReviewedBy = analysts[rng.Intn(len(analysts))]
					txn.ReviewedAt = &reviewedAt
				}
			}
			allTxns = append(allTxns, txn)
		}
	}

	writeJSONFile(filepath.Join(baseDir, "transactions.json"), allTxns)
	fmt.Printf("Generated %d transactions -> transactions.json\n", len(allTxns))
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	candidates := []string{
		"testdata",
		"../testdata",
		"../../testdata",
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
