package dataimport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/infrastructure/persistence"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "tower a", NormalizeName("  Tower A "))
	require.Equal(t, NormalizeName("Caf\u00e9"), NormalizeName("CAFE\u0301"))
}

func TestBuildProjectIndex_LowestIDWinsOnDuplicates(t *testing.T) {
	store := persistence.NewMemoryStore()
	first := seedProject(t, store, "Depot")
	seedProject(t, store, " depot ")
	other := seedProject(t, store, "Harbor")

	ix, err := BuildProjectIndex(context.Background(), store.Projects())
	require.NoError(t, err)
	require.Equal(t, 2, ix.Len())

	id, ok := ix.Lookup("DEPOT")
	require.True(t, ok)
	require.Equal(t, first.ID, id)

	id, ok = ix.Lookup("harbor")
	require.True(t, ok)
	require.Equal(t, other.ID, id)

	_, ok = ix.Lookup("Unknown")
	require.False(t, ok)
}

func TestProjectIndex_Suggest(t *testing.T) {
	store := persistence.NewMemoryStore()
	seedProject(t, store, "Tower Alpha")
	seedProject(t, store, "Tower Beta")
	seedProject(t, store, "Harbor")

	ix, err := BuildProjectIndex(context.Background(), store.Projects())
	require.NoError(t, err)
	require.Equal(t, []string{"Tower Beta"}, ix.Suggest("twr beta"))
	require.Empty(t, ix.Suggest("zzz"))
}

func TestProjectResolver(t *testing.T) {
	store := persistence.NewMemoryStore()
	alpha := seedProject(t, store, "Alpha")
	beta := seedProject(t, store, "Beta")
	ctx := context.Background()

	ix, err := BuildProjectIndex(ctx, store.Projects())
	require.NoError(t, err)

	cases := []struct {
		name      string
		cells     map[string]string
		defaultID uint
		want      uint
		warnings  int
	}{
		{name: "id preferred over name", cells: map[string]string{"project_id": "2", "project_name": "Alpha"}, want: beta.ID},
		{name: "float rendered id", cells: map[string]string{"project_id": "1.0"}, want: alpha.ID},
		{name: "missing id falls back to name", cells: map[string]string{"project_id": "99", "project_name": "alpha"}, want: alpha.ID, warnings: 1},
		{name: "garbage id falls back to name", cells: map[string]string{"project_id": "abc", "project": "BETA"}, want: beta.ID, warnings: 1},
		{name: "neither resolves", cells: map[string]string{"project_id": "99", "project_name": "Gamma"}, want: 0, warnings: 2},
		{name: "no reference uses default", cells: map[string]string{"name": "x"}, defaultID: beta.ID, want: beta.ID},
		{name: "bad reference ignores default", cells: map[string]string{"project_name": "Gamma"}, defaultID: beta.ID, want: 0, warnings: 1},
		{name: "no reference and no default", cells: map[string]string{"project_id": " "}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newProjectResolver(store.Projects(), ix, tc.defaultID)
			got, diags, err := r.Resolve(ctx, row(1, tc.cells))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Len(t, diags, tc.warnings)
		})
	}
}

type countingProjects struct {
	project.Repository
	exists int
	fail   bool
}

func (c *countingProjects) Exists(ctx context.Context, id uint) (bool, error) {
	c.exists++
	if c.fail {
		return false, errors.New("connection reset")
	}
	return c.Repository.Exists(ctx, id)
}

func TestProjectResolver_CachesExistenceChecks(t *testing.T) {
	store := persistence.NewMemoryStore()
	seedProject(t, store, "Alpha")
	repo := &countingProjects{Repository: store.Projects()}
	r := newProjectResolver(repo, &ProjectIndex{}, 0)

	for i := 0; i < 3; i++ {
		id, _, err := r.Resolve(context.Background(), row(i+1, map[string]string{"project_id": "1"}))
		require.NoError(t, err)
		require.Equal(t, uint(1), id)
	}
	require.Equal(t, 1, repo.exists)
}

func TestProjectResolver_StoreErrorPropagates(t *testing.T) {
	store := persistence.NewMemoryStore()
	r := newProjectResolver(&countingProjects{Repository: store.Projects(), fail: true}, nil, 0)

	_, _, err := r.Resolve(context.Background(), row(1, map[string]string{"project_id": "1"}))
	require.Error(t, err)
}
