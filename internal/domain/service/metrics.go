package service

// MetricsRecorder receives business counters from the use cases.
type MetricsRecorder interface {
	// ObserveSignIn counts a finished sign-in attempt by method and outcome.
	ObserveSignIn(method, outcome string)

	// ObserveRefill counts entitlement recomputations that changed the account.
	ObserveRefill(trigger string)

	// ObserveScore counts recorded scores by event kind.
	ObserveScore(kind string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ObserveSignIn(string, string) {}
func (NopMetrics) ObserveRefill(string)         {}
func (NopMetrics) ObserveScore(string)          {}
