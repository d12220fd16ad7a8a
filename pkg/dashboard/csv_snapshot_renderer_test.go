package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCsvSnapshotRendererImpl_RenderSnapshot(t *testing.T) {
	snapshot := Snapshot{
		MonthlyIncomeActual: dec("0"),
		RecurringIncome:     dec("50000"),
		FixedExpenses:       dec("20000"),
		EffectiveIncome:     dec("50000"),
		AvgVariableExpenses: dec("5000.5"),
		Surplus:             dec("24999.5"),
		TopCategory:         TopCategory{Id: "c1", Name: "Food, Dining", Amount: dec("1200")},
	}

	csv, err := NewCsvSnapshotRenderer().RenderSnapshot(snapshot)

	require.NoError(t, err)
	assert.Equal(t, "Metric,Value\n"+
		"Monthly income (actual),0.00\n"+
		"Recurring income,50000.00\n"+
		"Fixed expenses,20000.00\n"+
		"Effective income,50000.00\n"+
		"Average variable expenses,5000.50\n"+
		"Surplus,24999.50\n"+
		"Top category,\"Food, Dining\"\n"+
		"Top category spend,1200.00\n", csv)
}
