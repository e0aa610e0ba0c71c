package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoerce_SynonymsAndDefaults(t *testing.T) {
	require.Equal(t, TaskInProgress, CoerceTaskStatus("Active"))
	require.Equal(t, TaskNotStarted, CoerceTaskStatus(""))
	require.Equal(t, TaskNotStarted, CoerceTaskStatus("whatever"))
	require.Equal(t, TaskBlocked, CoerceTaskStatus(" on-hold "))

	require.Equal(t, ResourceLabor, CoerceResourceType("HUMAN"))
	require.Equal(t, ResourceMaterial, CoerceResourceType("bag"))

	require.Equal(t, ResourceAvailable, CoerceResourceStatus("ordered"))
	require.Equal(t, ResourceDepleted, CoerceResourceStatus("Retired"))

	require.Equal(t, ProjectInProgress, CoerceProjectStatus("In Progress"))
	require.Equal(t, ProjectCancelled, CoerceProjectStatus("canceled"))
	require.Equal(t, ProjectPlanning, CoerceProjectStatus("???"))

	require.Equal(t, PriorityCritical, CoerceTaskPriority("Urgent"))
	require.Equal(t, PriorityMedium, CoerceTaskPriority(""))
}

func TestCoerce_IsIdempotentAndTotal(t *testing.T) {
	for name, entries := range Synonyms() {
		for spelling, canonical := range entries {
			var first, second string
			switch name {
			case "project_status":
				first = string(CoerceProjectStatus(spelling))
				second = string(CoerceProjectStatus(first))
			case "task_status":
				first = string(CoerceTaskStatus(spelling))
				second = string(CoerceTaskStatus(first))
			case "task_priority":
				first = string(CoerceTaskPriority(spelling))
				second = string(CoerceTaskPriority(first))
			case "resource_type":
				first = string(CoerceResourceType(spelling))
				second = string(CoerceResourceType(first))
			case "resource_status":
				first = string(CoerceResourceStatus(spelling))
				second = string(CoerceResourceStatus(first))
			default:
				t.Fatalf("unexpected enum %q", name)
			}
			require.Equal(t, canonical, first, "%s: %q", name, spelling)
			require.Equal(t, first, second, "%s: %q", name, spelling)
		}
	}
}

func TestParse_ReportsUnknown(t *testing.T) {
	_, ok := ParseResourceType("bag")
	require.False(t, ok)

	v, ok := ParseResourceType("Tools")
	require.True(t, ok)
	require.Equal(t, ResourceEquipment, v)
}

func TestValid(t *testing.T) {
	require.True(t, TaskDelayed.Valid())
	require.False(t, TaskStatus("late").Valid())
	require.Len(t, ProjectStatuses(), 5)
	require.Len(t, ResourceStatuses(), 4)
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "in_progress", Normalize("  In - Progress "))
	require.Equal(t, "out_of_stock", Normalize("Out of Stock"))
}
