package engine

import (
	"fmt"

	"roundup/internal/core"
)

// RuleSet holds the three parsed rule lists in the order the pipeline
// applies them: overrides replace, extras add, aggregates only observe.
type RuleSet struct {
	Overrides  []core.Period
	Extras     []core.Period
	Aggregates []core.Period
}

func kindTag(kind core.PeriodKind) string {
	switch kind {
	case core.PeriodOverride:
		return "q"
	case core.PeriodExtra:
		return "p"
	case core.PeriodAggregate:
		return "k"
	}
	return string(kind)
}

// BuildPeriods parses one raw rule list into validated periods of the given
// kind. SourceIndex records each rule's position in the input list.
func BuildPeriods(raws []RawPeriod, kind core.PeriodKind) ([]core.Period, error) {
	periods := make([]core.Period, 0, len(raws))
	for i, raw := range raws {
		if raw.Start == "" || raw.End == "" {
			return nil, fmt.Errorf("%w: %s[%d] must include start and end", core.ErrMissingTimestamp, kindTag(kind), i)
		}
		start, err := core.ParseInstant(raw.Start)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", kindTag(kind), i, err)
		}
		end, err := core.ParseInstant(raw.End)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", kindTag(kind), i, err)
		}

		p := core.Period{Kind: kind, Start: start, End: end, SourceIndex: i}
		if kind != core.PeriodAggregate {
			value, err := numeric(raw.Value, kindTag(kind)+" value")
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", kindTag(kind), i, err)
			}
			p.Value = core.Round2(value)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", kindTag(kind), i, err)
		}
		periods = append(periods, p)
	}
	return periods, nil
}

// BuildRuleSet parses the q (override), p (extra) and k (aggregate) rule
// lists into one RuleSet.
func BuildRuleSet(q, p, k []RawPeriod) (RuleSet, error) {
	overrides, err := BuildPeriods(q, core.PeriodOverride)
	if err != nil {
		return RuleSet{}, err
	}
	extras, err := BuildPeriods(p, core.PeriodExtra)
	if err != nil {
		return RuleSet{}, err
	}
	aggregates, err := BuildPeriods(k, core.PeriodAggregate)
	if err != nil {
		return RuleSet{}, err
	}
	return RuleSet{Overrides: overrides, Extras: extras, Aggregates: aggregates}, nil
}
