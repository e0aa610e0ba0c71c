package dataimport

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind names a record kind. Values double as the result count keys and
// the conventional workbook sheet names.
type Kind string

const (
	KindProject  Kind = "projects"
	KindTask     Kind = "tasks"
	KindResource Kind = "resources"
	KindBudget   Kind = "budgets"
)

// Kinds lists the record kinds in import order.
func Kinds() []Kind {
	return []Kind{KindProject, KindTask, KindResource, KindBudget}
}

var ErrUnclassifiable = errors.New("cannot determine record kind from columns")

// ClassifySheetName matches a workbook sheet name against the known kinds,
// ignoring case and surrounding space.
func ClassifySheetName(name string) (Kind, bool) {
	n := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, k := range Kinds() {
		if n == k {
			return k, true
		}
	}
	return "", false
}

// ClassifyColumns infers the record kind of a flat table from its
// normalized headers. The most specific column sets are checked first
// since task and project tables both may carry a plain name column.
func ClassifyColumns(headers []string) (Kind, error) {
	has := make(map[string]bool, len(headers))
	for _, h := range headers {
		has[NormalizeHeader(h)] = true
	}
	hasAny := func(cols ...string) bool {
		for _, c := range cols {
			if has[c] {
				return true
			}
		}
		return false
	}

	switch {
	case has["category"] && has["planned_amount"]:
		return KindBudget, nil
	case hasAny("resource_name", "resource_type"):
		return KindResource, nil
	case has["task_name"] || (hasAny(colName...) && hasAny("assigned_to", "priority", "progress", "progress_percentage")):
		return KindTask, nil
	case has["project_name"] || (hasAny(colName...) && has["total_budget"]):
		return KindProject, nil
	}

	seen := make([]string, 0, len(has))
	for h := range has {
		seen = append(seen, h)
	}
	sort.Strings(seen)
	return "", fmt.Errorf("%w: saw [%s]", ErrUnclassifiable, strings.Join(seen, ", "))
}
