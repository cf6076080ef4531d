package session

import "bp_monitor/internal/models"

// Pressure thresholds driving phase detection. The algorithm is driven by
// the observed pressure trend, not by device-reported state frames, which
// are unreliable or absent in practice.
const (
	// InflationStartMmHg is the pressure above which the cuff is
	// considered to have started inflating.
	InflationStartMmHg = 30
	// DeflationDropMmHg is the sustained drop from the observed peak that
	// signals the cuff has begun releasing.
	DeflationDropMmHg = 5
	// AnalysisThresholdMmHg is the pressure at or below which the device
	// is extracting the oscillometric result.
	AnalysisThresholdMmHg = 65
)

// nextPhase advances the phase for one pressure sample. Transitions are
// strictly forward; a single sample may cross more than one boundary (a
// fast deflate can land below the analysis threshold in one step), so the
// caller iterates until the phase is stable.
func nextPhase(cur models.MeasurementPhase, prev uint16, havePrev bool, peak, sample uint16) models.MeasurementPhase {
	switch cur {
	case models.PhaseWaiting:
		if sample > InflationStartMmHg {
			return models.PhaseInflating
		}
	case models.PhaseInflating:
		if havePrev && sample < prev {
			return models.PhaseDeflating
		}
		if peak >= DeflationDropMmHg && sample <= peak-DeflationDropMmHg {
			return models.PhaseDeflating
		}
	case models.PhaseDeflating:
		if sample <= AnalysisThresholdMmHg {
			return models.PhaseAnalyzing
		}
	case models.PhaseAnalyzing:
		if sample == 0 {
			return models.PhaseComplete
		}
	}
	return cur
}
