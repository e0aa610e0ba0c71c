package dataimport

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
)

const maxSuggestions = 3

// NormalizeName folds a project name for matching: trimmed, NFC
// composed and case folded.
func NormalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	return cases.Fold().String(name)
}

// ProjectIndex maps normalized project names to ids. It is built once per
// import call and rebuilt after the project sheet is imported.
type ProjectIndex struct {
	byName map[string]uint
	names  []string
}

// BuildProjectIndex loads every persisted project. When names collide
// after normalization the lowest id wins.
func BuildProjectIndex(ctx context.Context, repo project.Repository) (*ProjectIndex, error) {
	projects, err := repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load projects for name index: %w", err)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })

	ix := &ProjectIndex{byName: make(map[string]uint, len(projects))}
	for _, p := range projects {
		key := NormalizeName(p.Name)
		if key == "" {
			continue
		}
		if _, taken := ix.byName[key]; taken {
			continue
		}
		ix.byName[key] = p.ID
		ix.names = append(ix.names, p.Name)
	}
	return ix, nil
}

func (ix *ProjectIndex) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.byName)
}

func (ix *ProjectIndex) Lookup(name string) (uint, bool) {
	if ix == nil {
		return 0, false
	}
	id, ok := ix.byName[NormalizeName(name)]
	return id, ok
}

// Suggest returns up to three known names close to name, best first.
func (ix *ProjectIndex) Suggest(name string) []string {
	if ix == nil || len(ix.names) == 0 {
		return nil
	}
	ranks := fuzzy.RankFindNormalizedFold(strings.TrimSpace(name), ix.names)
	if len(ranks) == 0 {
		return nil
	}
	sort.Sort(ranks)
	out := make([]string, 0, maxSuggestions)
	for _, r := range ranks {
		out = append(out, r.Target)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// projectResolver finds the owning project of a dependent row: a valid
// numeric id first, then the name index, then the caller's default for
// rows carrying no reference at all.
type projectResolver struct {
	projects  project.Repository
	index     *ProjectIndex
	defaultID uint
	known     map[uint]bool
}

func newProjectResolver(projects project.Repository, index *ProjectIndex, defaultID uint) *projectResolver {
	return &projectResolver{
		projects:  projects,
		index:     index,
		defaultID: defaultID,
		known:     map[uint]bool{},
	}
}

func (r *projectResolver) exists(ctx context.Context, id uint) (bool, error) {
	if ok, cached := r.known[id]; cached {
		return ok, nil
	}
	ok, err := r.projects.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	r.known[id] = ok
	return ok, nil
}

// Resolve returns 0 when the row cannot be attributed to a project.
func (r *projectResolver) Resolve(ctx context.Context, row Row) (uint, []Diagnostic, error) {
	var diags []Diagnostic
	note := func(level Level, field, format string, args ...any) {
		diags = append(diags, Diagnostic{Row: row.Number, Field: field, Reason: fmt.Sprintf(format, args...), Level: level})
	}

	rawID, idField, _ := row.Lookup(colProjectID...)
	if rawID != "" {
		id, ok := parseID(rawID)
		switch {
		case !ok:
			note(LevelWarning, idField, "project_id %q is not a valid id, trying project name", rawID)
		default:
			found, err := r.exists(ctx, id)
			if err != nil {
				return 0, diags, err
			}
			if found {
				return id, diags, nil
			}
			note(LevelWarning, idField, "project %d does not exist, trying project name", id)
		}
	}

	name, nameField, _ := row.Lookup(colProjectRefName...)
	if name != "" {
		if id, ok := r.index.Lookup(name); ok {
			return id, diags, nil
		}
		if hints := r.index.Suggest(name); len(hints) > 0 {
			note(LevelWarning, nameField, "unknown project %q, did you mean: %s", name, strings.Join(hints, ", "))
		} else {
			note(LevelWarning, nameField, "unknown project %q", name)
		}
	}

	if rawID == "" && name == "" && r.defaultID != 0 {
		return r.defaultID, diags, nil
	}
	return 0, diags, nil
}
