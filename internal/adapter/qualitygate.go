package adapter

// QualityGateResult is the outcome of CheckQualityGate.
type QualityGateResult struct {
	Pass    bool
	Warn    bool
	Message string
}

// CheckQualityGate implements its per-run quality gate: reject when
// current is <80% of last (likely silent data loss); warn but pass when
// current is >150% (likely a dedup failure upstream). lastCount == 0
// always passes (first sync for a source has nothing to compare against).
func CheckQualityGate(currentCount, lastCount int) QualityGateResult {
	if lastCount == 0 {
		return QualityGateResult{Pass: true}
	}

	ratio := float64(currentCount) / float64(lastCount)
	if ratio < 0.8 {
		return QualityGateResult{
			Pass:    false,
			Message: "document count dropped below 80% of the prior run; likely silent data loss",
		}
	}
	if ratio > 1.5 {
		return QualityGateResult{
			Pass:    true,
			Warn:    true,
			Message: "document count exceeded 150% of the prior run; check for a dedup failure",
		}
	}
	return QualityGateResult{Pass: true}
}
