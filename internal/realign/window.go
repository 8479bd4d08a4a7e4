package realign

import "math"

// minExpansionStep is the smallest window shift tried, in seconds.
const minExpansionStep = 0.5

// expansionSchedule produces the sequence of window shifts for a search: an
// exponential ramp from minExpansionStep to target over the given number of
// attempts. Intermediate steps round up to 0.1s; the final step is the exact
// target. With target 3.0 and 5 attempts the schedule is
// [0.5, 0.8, 1.3, 2.0, 3.0].
func expansionSchedule(target float64, attempts int) []float64 {
	if attempts <= 1 || target <= minExpansionStep {
		return []float64{target}
	}
	growth := math.Pow(target/minExpansionStep, 1/float64(attempts-1))
	out := make([]float64, 0, attempts)
	for i := 0; i < attempts-1; i++ {
		step := minExpansionStep * math.Pow(growth, float64(i))
		out = append(out, math.Ceil(step*10)/10)
	}
	return append(out, target)
}
