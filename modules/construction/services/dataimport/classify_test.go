package dataimport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyColumns(t *testing.T) {
	cases := []struct {
		name    string
		headers []string
		want    Kind
	}{
		{name: "budget beats resource", headers: []string{"category", "planned_amount", "resource_type"}, want: KindBudget},
		{name: "resource by type", headers: []string{"name", "resource_type", "quantity", "unit_cost"}, want: KindResource},
		{name: "resource by name column", headers: []string{"resource_name", "project_id"}, want: KindResource},
		{name: "task by task_name", headers: []string{"task_name", "project_name"}, want: KindTask},
		{name: "task by name and assignee", headers: []string{"name", "assigned_to"}, want: KindTask},
		{name: "task by name and priority", headers: []string{"Name ", " PRIORITY"}, want: KindTask},
		{name: "project by project_name", headers: []string{"project_name", "location"}, want: KindProject},
		{name: "project by name and budget", headers: []string{"name", "total_budget"}, want: KindProject},
		{name: "category alone is not a budget", headers: []string{"category", "project_name"}, want: KindProject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ClassifyColumns(tc.headers)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyColumns_NoRuleMatches(t *testing.T) {
	_, err := ClassifyColumns([]string{"name", "colour"})
	require.ErrorIs(t, err, ErrUnclassifiable)
	require.Contains(t, err.Error(), "colour, name")
}

func TestClassifySheetName(t *testing.T) {
	kind, ok := ClassifySheetName(" Projects ")
	require.True(t, ok)
	require.Equal(t, KindProject, kind)

	kind, ok = ClassifySheetName("BUDGETS")
	require.True(t, ok)
	require.Equal(t, KindBudget, kind)

	_, ok = ClassifySheetName("Project")
	require.False(t, ok)
}
