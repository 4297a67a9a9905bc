package strategy

// Positions converts a strategy's SignalSet into the executable position
// sequence. The policy picks the held state per bar; the result is then
// delayed by one bar so that position[i] = held[i-1] and position[0] = 0.
// A decision knowable only at bar i's close is never acted on before bar
// i+1.
func Positions(policy PositionPolicy, set SignalSet) []float64 {
	var held []float64
	switch policy {
	case PolicyPrecomputed:
		held = set.RawPositions
	default:
		held = forwardFill(set)
	}

	out := make([]float64, len(held))
	for i := 1; i < len(held); i++ {
		out[i] = held[i-1]
	}
	return out
}

func forwardFill(set SignalSet) []float64 {
	held := make([]float64, len(set.Signals))
	var last float64
	for i, s := range set.Signals {
		if s != 0 {
			last = float64(s)
		}
		held[i] = last
	}
	return held
}
