package grammar

import "math"

// LogZero is the log of a zero probability.
var LogZero = math.Inf(-1)

// LogSum returns log(exp(a) + exp(b)) without leaving log space.
// LogSum(-Inf, -Inf) is -Inf. A NaN argument is a programming error and panics.
func LogSum(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		panic("grammar: LogSum of NaN")
	}
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a > b {
		return a + math.Log1p(math.Exp(b-a))
	}
	return b + math.Log1p(math.Exp(a-b))
}

// LogSubtract returns log(exp(a) - exp(b)) for a >= b. Differences that
// underflow or go negative through rounding return -Inf.
func LogSubtract(a, b float64) float64 {
	if math.IsInf(b, -1) {
		return a
	}
	if b >= a {
		return LogZero
	}
	return a + math.Log1p(-math.Exp(b-a))
}
