package dashboard

import (
	"bytes"
	"encoding/csv"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type SnapshotRenderer interface {
	RenderSnapshot(snapshot Snapshot) (string, error)
}

type CsvSnapshotRendererImpl struct {
}

func NewCsvSnapshotRenderer() *CsvSnapshotRendererImpl {
	return &CsvSnapshotRendererImpl{}
}

// RenderSnapshot writes one metric per row, amounts with two decimals.
func (r *CsvSnapshotRendererImpl) RenderSnapshot(snapshot Snapshot) (string, error) {
	data := [][]string{
		{"Metric", "Value"},
		{"Monthly income (actual)", money(snapshot.MonthlyIncomeActual)},
		{"Recurring income", money(snapshot.RecurringIncome)},
		{"Fixed expenses", money(snapshot.FixedExpenses)},
		{"Effective income", money(snapshot.EffectiveIncome)},
		{"Average variable expenses", money(snapshot.AvgVariableExpenses)},
		{"Surplus", money(snapshot.Surplus)},
		{"Top category", snapshot.TopCategory.Name},
		{"Top category spend", money(snapshot.TopCategory.Amount)},
	}

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	if err := writer.WriteAll(data); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}
	return b.String(), nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
