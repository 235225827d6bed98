package scoring

// Bump weights shared by the memory and segment stores. Passed observations
// dominate future start-context selection; planning hints are hypotheses and
// weigh less at scenario scope.
const (
	// WeightPlan is applied when a start context is merely planned.
	WeightPlan = 1.0
	// WeightObservedPass is applied when a passed attempt confirms a start context.
	WeightObservedPass = 3.0
	// WeightObserved is applied for any non-passed observed start context.
	WeightObserved = 0.75
	// ScenarioShare scales a case-level bump when mirrored to its scenario.
	ScenarioShare = 0.5
)

// ObservationWeight returns the bump weight for an observation status.
func ObservationWeight(passed bool) float64 {
	if passed {
		return WeightObservedPass
	}
	return WeightObserved
}
