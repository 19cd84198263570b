package evaluation

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog is the static reference data every period shares: the evaluation
// line templates and the grade table used when a period defines none.
type Catalog struct {
	Lines              []EvaluationLine `yaml:"lines" json:"lines"`
	DefaultGradeRanges GradeRanges      `yaml:"defaultGradeRanges" json:"defaultGradeRanges"`
}

func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	sort.SliceStable(c.Lines, func(i, j int) bool { return c.Lines[i].Order < c.Lines[j].Order })
	return c, nil
}

func (c Catalog) Validate() error {
	var errs []error
	orders := map[int]string{}
	ids := map[string]bool{}
	perType := map[EvaluatorType]int{}
	for _, line := range c.Lines {
		if line.ID == "" {
			errs = append(errs, fmt.Errorf("line with order %d has no id", line.Order))
		} else if ids[line.ID] {
			errs = append(errs, fmt.Errorf("line id %s is duplicated", line.ID))
		}
		ids[line.ID] = true

		switch line.EvaluatorType {
		case EvaluatorPrimary, EvaluatorSecondary, EvaluatorAdditional:
		default:
			errs = append(errs, fmt.Errorf("line %s has unknown evaluator type %q", line.ID, line.EvaluatorType))
		}
		perType[line.EvaluatorType]++

		if other, ok := orders[line.Order]; ok {
			errs = append(errs, fmt.Errorf("lines %s and %s share order %d", other, line.ID, line.Order))
		}
		orders[line.Order] = line.ID
	}
	if perType[EvaluatorPrimary] != 1 {
		errs = append(errs, fmt.Errorf("catalog needs exactly one PRIMARY line, found %d", perType[EvaluatorPrimary]))
	}
	if perType[EvaluatorSecondary] != 1 {
		errs = append(errs, fmt.Errorf("catalog needs exactly one SECONDARY line, found %d", perType[EvaluatorSecondary]))
	}
	if err := c.DefaultGradeRanges.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Line returns the first line of the given evaluator type by order.
func (c Catalog) Line(t EvaluatorType) (EvaluationLine, bool) {
	for _, line := range c.Lines {
		if line.EvaluatorType == t {
			return line, true
		}
	}
	return EvaluationLine{}, false
}

// GradeRangesFor returns the period's own table, or the catalog default when
// the period has none.
func (c Catalog) GradeRangesFor(p EvaluationPeriod) GradeRanges {
	if len(p.GradeRanges) > 0 {
		return p.GradeRanges
	}
	return c.DefaultGradeRanges
}
