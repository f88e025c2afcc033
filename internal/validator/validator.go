package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/arbor/internal/dto"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/go-playground/validator/v10"
)

// documentValidate checks manifest documents against their struct tags.
var documentValidate *validator.Validate

func init() {
	documentValidate = validator.New()
	_ = documentValidate.RegisterValidation("nodeid", validateNodeID)
}

// validateNodeID rejects ids the engine would refuse or could not address by path.
func validateNodeID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return !strings.HasPrefix(id, domain.AutoIDPrefix) && !strings.Contains(id, domain.PathSeparator)
}

// ValidateDocument checks a single module document.
func ValidateDocument(doc *dto.ModuleDocument) error {
	if err := documentValidate.Struct(doc); err != nil {
		return fmt.Errorf("module '%s': %w", doc.ID, err)
	}
	var problems []string
	for _, c := range doc.Contributions {
		checkIDs(c.Path, c.Nodes, &problems)
	}
	if len(problems) > 0 {
		return fmt.Errorf("module '%s': %s", doc.ID, strings.Join(problems, "; "))
	}
	return nil
}

func checkIDs(path string, nodes []dto.NodeDocument, problems *[]string) {
	for _, n := range nodes {
		if n.ID != "" {
			if err := documentValidate.Var(n.ID, "nodeid"); err != nil {
				*problems = append(*problems, fmt.Sprintf("invalid node id '%s' under %s", n.ID, path))
			}
		}
		if n.Node == domain.NodeNameCondition || n.Node == domain.NodeNameComplexCondition {
			checkIDs(path, n.Children, problems)
			continue
		}
		checkIDs(path+domain.PathSeparator+n.ID, n.Children, problems)
	}
}

// ValidateModules checks a set of module documents: each document on its own,
// then the references between them (duplicate ids, unknown dependencies,
// dependency cycles and contributions to undeclared extension points).
func ValidateModules(docs []dto.ModuleDocument) error {
	var problems []string

	modules := make(map[string]*dto.ModuleDocument, len(docs))
	points := make(map[string]bool)
	for i := range docs {
		doc := &docs[i]
		if err := ValidateDocument(doc); err != nil {
			problems = append(problems, err.Error())
		}
		if _, dup := modules[doc.ID]; dup {
			problems = append(problems, fmt.Sprintf("module '%s' is declared twice", doc.ID))
			continue
		}
		modules[doc.ID] = doc
		for _, ep := range doc.ExtensionPoints {
			points[ep.Path] = true
		}
	}

	for _, doc := range docs {
		for _, dep := range doc.Dependencies {
			if _, ok := modules[dep]; !ok {
				problems = append(problems, fmt.Sprintf("module '%s' depends on unknown module '%s'", doc.ID, dep))
			}
		}
		for _, c := range doc.Contributions {
			if !points[c.Path] && !contributesBelowPoint(c.Path, points) {
				problems = append(problems, fmt.Sprintf("module '%s' contributes to undeclared extension point '%s'", doc.ID, c.Path))
			}
		}
	}

	for _, cycle := range dependencyCycles(modules) {
		problems = append(problems, fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")))
	}

	if len(problems) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}

// contributesBelowPoint reports whether path lies under a declared extension
// point, as when a module extends a node contributed by another module.
func contributesBelowPoint(path string, points map[string]bool) bool {
	for p := range points {
		if strings.HasPrefix(path, p+domain.PathSeparator) {
			return true
		}
	}
	return false
}

// dependencyCycles returns each dependency cycle once, starting at its
// smallest module id.
func dependencyCycles(modules map[string]*dto.ModuleDocument) [][]string {
	ids := make([]string, 0, len(modules))
	for id := range modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int)
	var stack []string
	var cycles [][]string
	seen := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		state[id] = inProgress
		stack = append(stack, id)
		for _, dep := range modules[id].Dependencies {
			if _, ok := modules[dep]; !ok {
				continue
			}
			switch state[dep] {
			case unvisited:
				visit(dep)
			case inProgress:
				cycle := cycleFrom(stack, dep)
				if key := strings.Join(cycle, ">"); !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, id := range ids {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}

// cycleFrom extracts the cycle closing at dep from the visit stack, rotated so
// that it starts at its smallest id, and repeats the first id at the end.
func cycleFrom(stack []string, dep string) []string {
	start := 0
	for i, id := range stack {
		if id == dep {
			start = i
			break
		}
	}
	cycle := append([]string(nil), stack[start:]...)

	min := 0
	for i, id := range cycle {
		if id < cycle[min] {
			min = i
		}
	}
	rotated := append(append([]string(nil), cycle[min:]...), cycle[:min]...)
	return append(rotated, rotated[0])
}

// IsValidationError reports whether err came from struct tag validation.
func IsValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}
