package analysis

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"quizcat-service/internal/domain"
)

// PassStep maps a minimum average score and answer volume to a chance of
// reaching the target grade. Thresholds are inclusive.
type PassStep struct {
	MinAvgPercent int `yaml:"min_avg_percent" json:"minAvgPercent"`
	MinAnswered   int `yaml:"min_answered" json:"minAnswered"`
	Chance        int `yaml:"chance" json:"chance"`
}

// PassPolicy is the hand-tuned "chance of passing" table. The numbers are
// product configuration; the table is evaluated top-down after sorting by
// descending score then volume, and the first matching step wins.
type PassPolicy struct {
	Default []PassStep                  `yaml:"default" json:"default"`
	ByGrade map[domain.Grade][]PassStep `yaml:"by_grade" json:"byGrade,omitempty"`
	// Floor is returned when no step matches.
	Floor int `yaml:"floor" json:"floor"`
}

// DefaultPassPolicy is the table shipped with the service.
func DefaultPassPolicy() PassPolicy {
	return PassPolicy{
		Default: []PassStep{
			{MinAvgPercent: 90, MinAnswered: 100, Chance: 95},
			{MinAvgPercent: 90, MinAnswered: 30, Chance: 85},
			{MinAvgPercent: 80, MinAnswered: 50, Chance: 75},
			{MinAvgPercent: 80, MinAnswered: 10, Chance: 65},
			{MinAvgPercent: 70, MinAnswered: 10, Chance: 50},
			{MinAvgPercent: 60, MinAnswered: 10, Chance: 35},
			{MinAvgPercent: 50, MinAnswered: 0, Chance: 20},
		},
		ByGrade: map[domain.Grade][]PassStep{
			// Entrance-exam years demand more practice volume.
			6: {
				{MinAvgPercent: 90, MinAnswered: 200, Chance: 95},
				{MinAvgPercent: 90, MinAnswered: 50, Chance: 80},
				{MinAvgPercent: 80, MinAnswered: 50, Chance: 65},
				{MinAvgPercent: 70, MinAnswered: 20, Chance: 45},
				{MinAvgPercent: 60, MinAnswered: 10, Chance: 30},
				{MinAvgPercent: 50, MinAnswered: 0, Chance: 15},
			},
		},
		Floor: 10,
	}
}

// LoadPassPolicy reads a YAML policy file.
func LoadPassPolicy(path string) (PassPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PassPolicy{}, err
	}
	var p PassPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return PassPolicy{}, fmt.Errorf("parse pass policy: %w", err)
	}
	if len(p.Default) == 0 {
		return PassPolicy{}, fmt.Errorf("pass policy %s: default table is empty", path)
	}
	return p, nil
}

// Chance evaluates the policy. avgPercent is the average score in percent.
func (p PassPolicy) Chance(avgPercent, answered int, grade domain.Grade) int {
	steps := p.Default
	if override, ok := p.ByGrade[grade]; ok && len(override) > 0 {
		steps = override
	}
	ordered := make([]PassStep, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].MinAvgPercent != ordered[j].MinAvgPercent {
			return ordered[i].MinAvgPercent > ordered[j].MinAvgPercent
		}
		return ordered[i].MinAnswered > ordered[j].MinAnswered
	})
	for _, step := range ordered {
		if avgPercent >= step.MinAvgPercent && answered >= step.MinAnswered {
			return step.Chance
		}
	}
	return p.Floor
}

// ChanceForReport applies the policy to an aggregated report.
func (p PassPolicy) ChanceForReport(r Report, grade domain.Grade) int {
	if r.Insights.Answered == 0 {
		return 0
	}
	avg := int(r.Insights.AvgScore*100 + 0.5)
	return p.Chance(avg, r.Insights.Answered, grade)
}
