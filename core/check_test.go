package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTherapy(t *testing.T) {
	tests := []struct {
		name       string
		records    []schema.SessionRecord
		threshold  float64
		passed     bool
		violations []string
	}{
		{
			name:      "healthy therapy",
			records:   steadyNights(30, nil),
			threshold: DefaultEffectivenessThreshold,
			passed:    true,
		},
		{
			name: "low usage",
			records: steadyNights(30, func(_ int, r *schema.SessionRecord) {
				r.DurationHours = 3
			}),
			threshold:  DefaultEffectivenessThreshold,
			violations: []string{complianceRuleName},
		},
		{
			name:       "strict effectiveness",
			records:    steadyNights(30, nil),
			threshold:  99,
			violations: []string{effectivenessRuleName},
		},
		{
			name:       "no nights",
			records:    nil,
			threshold:  DefaultEffectivenessThreshold,
			violations: []string{complianceRuleName, effectivenessRuleName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckTherapy(tt.records, testRef, algo.DefaultComplianceRule, tt.threshold)

			assert.Equal(t, tt.passed, result.Passed)
			assert.Equal(t, testRef, result.ReferenceDate)
			rules := make([]string, 0, len(result.Violations))
			for _, v := range result.Violations {
				rules = append(rules, v.Rule)
			}
			if len(tt.violations) == 0 {
				assert.Empty(t, rules)
			} else {
				assert.Equal(t, tt.violations, rules)
			}
		})
	}
}

func TestCheckTherapyNoNightsMessage(t *testing.T) {
	result := CheckTherapy(nil, testRef, algo.DefaultComplianceRule, DefaultEffectivenessThreshold)

	require.Len(t, result.Violations, 2)
	assert.Equal(t, "no nights to score", result.Violations[1].Message)
	assert.Contains(t, result.Violations[0].Message, "21 more needed")
}

func TestPrintCheckResult(t *testing.T) {
	t.Run("passed", func(t *testing.T) {
		var buf bytes.Buffer
		result := CheckTherapy(steadyNights(30, nil), testRef, algo.DefaultComplianceRule, DefaultEffectivenessThreshold)

		assert.NotPanics(t, func() {
			printCheckResult(&buf, &result, algo.DefaultComplianceRule, 5*time.Millisecond)
		})
		out := buf.String()
		assert.Contains(t, out, "Therapy Check Results:")
		assert.Contains(t, out, "2024-03-30")
		assert.Contains(t, out, "passed all checks")
		assert.Contains(t, out, "compliance: 100.0%")
	})

	t.Run("failed", func(t *testing.T) {
		var buf bytes.Buffer
		result := CheckTherapy(nil, testRef, algo.DefaultComplianceRule, DefaultEffectivenessThreshold)

		printCheckResult(&buf, &result, algo.DefaultComplianceRule, time.Millisecond)
		out := buf.String()
		assert.Contains(t, out, "2 violation(s) found")
		assert.Contains(t, out, "- compliance:")
		assert.Contains(t, out, "- effectiveness:")
	})
}
