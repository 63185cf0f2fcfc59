package covenant

import (
	"math"
	"strings"
)

// metricFor maps a covenant type to the matching metrics field. The second
// return is false for covenant types outside the fixed enumeration.
func metricFor(covenantType CovenantType, metrics Metrics) (float64, bool) {
	switch covenantType {
	case MinTier1Coverage:
		return metrics.Tier1Coverage, true
	case MinTier2Coverage:
		return metrics.Tier2Coverage, true
	case MaxHHI:
		return metrics.HHI, true
	case MaxSupplyShortfall:
		return metrics.SupplyShortfall, true
	case MinSupplierCount:
		return metrics.SupplierCount, true
	default:
		return 0, false
	}
}

// Check evaluates each covenant against the current metrics and classifies
// the outcome. Pure: no I/O, identical inputs give identical output. Unknown
// covenant types are skipped, order is otherwise preserved.
//
// min_* rules are compliant when actual >= threshold, max_* rules when
// actual <= threshold. Variance is the rounded percentage distance from the
// threshold. A zero threshold yields variance 0 when compliant and 100 when
// not, since no meaningful ratio exists.
func Check(covenants []Covenant, metrics Metrics) []Result {
	results := make([]Result, 0, len(covenants))

	for _, cov := range covenants {
		actual, ok := metricFor(cov.Type, metrics)
		if !ok {
			continue
		}

		var compliant bool
		if strings.HasPrefix(string(cov.Type), "min_") {
			compliant = actual >= cov.Threshold
		} else {
			compliant = actual <= cov.Threshold
		}

		var variance int
		if cov.Threshold == 0 {
			if !compliant {
				variance = 100
			}
		} else {
			variance = int(math.Round(math.Abs(actual-cov.Threshold) / cov.Threshold * 100))
		}

		results = append(results, Result{
			Type:            cov.Type,
			Compliant:       compliant,
			ActualValue:     actual,
			ThresholdValue:  cov.Threshold,
			VariancePercent: variance,
			Severity:        classify(compliant, variance),
		})
	}

	return results
}

// classify buckets a result by how far it sits from the threshold. A
// compliant metric within 10% of its threshold still warrants visibility.
func classify(compliant bool, variancePercent int) Severity {
	if compliant {
		if variancePercent < 10 {
			return SeverityWarning
		}
		return SeverityInfo
	}
	switch {
	case variancePercent >= 50:
		return SeverityCritical
	case variancePercent >= 25:
		return SeverityBreach
	default:
		return SeverityWarning
	}
}
