package dataimport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildflow/buildflow/modules/construction/domain/enums"
)

func row(number int, cells map[string]string) Row {
	return Row{Number: number, Cells: cells}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "2025-03-01", want: "2025-03-01", ok: true},
		{in: "2025-03-01T08:30:00Z", want: "2025-03-01", ok: true},
		{in: "2025-03-01 08:30:00", want: "2025-03-01", ok: true},
		{in: "2025/03/01", want: "2025-03-01", ok: true},
		{in: "03/01/2025", want: "2025-03-01", ok: true},
		{in: "3/1/2025", want: "2025-03-01", ok: true},
		{in: "03-01-25", want: "2025-03-01", ok: true},
		{in: "01.03.2025", want: "2025-03-01", ok: true},
		{in: "45717", want: "2025-03-01", ok: true},
		{in: "not-a-date", ok: false},
		{in: "", ok: false},
		{in: "-5", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseDate(tc.in)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.want, got.Format("2006-01-02"))
				require.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "10", want: 10, ok: true},
		{in: " 5.5 ", want: 5.5, ok: true},
		{in: "$1,200.50", want: 1200.5, ok: true},
		{in: "45%", want: 45, ok: true},
		{in: "€ 300", want: 300, ok: true},
		{in: "-7", want: -7, ok: true},
		{in: "1,234", want: 1234, ok: true},
		{in: "1,234,567.89", want: 1234567.89, ok: true},
		{in: "12,5", want: 12.5, ok: true},
		{in: "0,75", want: 0.75, ok: true},
		{in: "-3,25", want: -3.25, ok: true},
		{in: "1,2,3", ok: false},
		{in: "12,5.0", ok: false},
		{in: "1.234,5", ok: false},
		{in: "abc", ok: false},
		{in: "NaN", ok: false},
		{in: "Inf", ok: false},
		{in: "", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseNumber(tc.in)
			require.Equal(t, tc.ok, ok)
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestCoerceTask(t *testing.T) {
	tk, diags := CoerceTask(row(4, map[string]string{
		"task_name":        " Pour slab ",
		"status":           "Active",
		"priority":         "URGENT",
		"start_date":       "2025-01-10",
		"planned_end_date": "garbage",
		"progress":         "150",
		"assigned_to":      " Ana ",
		"depends_on":       "7",
	}))

	require.Equal(t, "Pour slab", tk.Name)
	require.Equal(t, enums.TaskInProgress, tk.Status)
	require.Equal(t, enums.PriorityCritical, tk.Priority)
	require.NotNil(t, tk.StartDate)
	require.Nil(t, tk.PlannedEndDate)
	require.InDelta(t, 100.0, tk.ProgressPercentage, 0.0001)
	require.Equal(t, "Ana", tk.AssignedTo)
	require.NotNil(t, tk.DependsOnTaskID)
	require.Equal(t, uint(7), *tk.DependsOnTaskID)

	fields := map[string]Level{}
	for _, d := range diags {
		require.Equal(t, 4, d.Row)
		fields[d.Field] = d.Level
	}
	require.Equal(t, map[string]Level{
		"planned_end_date": LevelWarning,
		"progress":         LevelWarning,
	}, fields)
}

func TestCoerceTask_Defaults(t *testing.T) {
	tk, diags := CoerceTask(row(1, map[string]string{"name": "Dig"}))

	require.Equal(t, enums.TaskNotStarted, tk.Status)
	require.Equal(t, enums.PriorityMedium, tk.Priority)
	require.Zero(t, tk.ProgressPercentage)
	require.Nil(t, tk.StartDate)
	require.Nil(t, tk.DependsOnTaskID)
	require.Empty(t, diags)
}

func TestCoerceResource(t *testing.T) {
	r, diags := CoerceResource(row(2, map[string]string{
		"resource_name": "Crew B",
		"type":          "Human",
		"status":        "retired",
		"quantity":      "0",
		"unit_cost":     "-12",
		"unit":          "hours",
	}))

	require.Equal(t, enums.ResourceLabor, r.ResourceType)
	require.Equal(t, enums.ResourceDepleted, r.Status)
	require.Equal(t, "hours", r.Unit)
	require.Zero(t, r.UnitCost)
	require.Zero(t, r.TotalCost)
	require.Len(t, diags, 1)
	require.Equal(t, "unit_cost", diags[0].Field)
}

func TestCoerceResource_StatusSynonyms(t *testing.T) {
	r, _ := CoerceResource(row(1, map[string]string{"name": "Rebar", "status": "Ordered", "quantity": "4", "unit_cost": "2.5"}))
	require.Equal(t, enums.ResourceAvailable, r.Status)
	require.InDelta(t, 10.0, r.TotalCost, 1e-9)
}

func TestCoerceProject(t *testing.T) {
	p, diags := CoerceProject(row(1, map[string]string{
		"project_name": "Tower B",
		"status":       "on hold",
		"budget":       "1,000,000",
		"spent":        "lots",
		"location":     "  Riga ",
	}))

	require.Equal(t, "Tower B", p.Name)
	require.Equal(t, enums.ProjectOnHold, p.Status)
	require.InDelta(t, 1000000.0, p.TotalBudget, 1e-6)
	require.Zero(t, p.SpentAmount)
	require.Equal(t, "Riga", p.Location)
	require.Len(t, diags, 1)
	require.Equal(t, "spent", diags[0].Field)
}

func TestCoerceBudget_DateFallsBackToNow(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	b, _ := CoerceBudget(row(1, map[string]string{"category": "Steel", "planned_amount": "100"}), now)
	require.Equal(t, now, b.BudgetDate)

	b, diags := CoerceBudget(row(2, map[string]string{"category": "Steel", "budget_date": "2025-02-03"}), now)
	require.Equal(t, "2025-02-03", b.BudgetDate.Format("2006-01-02"))
	require.Empty(t, diags)
}

func TestCoerceEnum_UnrecognizedFallsBackToDefault(t *testing.T) {
	p, diags := CoerceProject(row(3, map[string]string{"name": "X", "status": "exploded"}))
	require.Equal(t, enums.ProjectPlanning, p.Status)
	require.Len(t, diags, 1)
	require.Equal(t, "status", diags[0].Field)
	require.Contains(t, diags[0].Reason, "exploded")
}
