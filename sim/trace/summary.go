package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalCommands      int
	SucceededCount     int
	FailedCount        int
	BusTransactions    int
	UniqueTargets      int
	TargetDistribution map[string]int // model name → count of commands addressed to it
	BusByAddress       map[int]int    // RT address → count of transactions
	ExecutionOrder     []string
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		TargetDistribution: make(map[string]int),
		BusByAddress:       make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalCommands = len(st.Commands)
	for _, c := range st.Commands {
		if c.OK {
			summary.SucceededCount++
		} else {
			summary.FailedCount++
		}
		if c.Target != "" {
			summary.TargetDistribution[c.Target]++
		}
	}

	summary.BusTransactions = len(st.Bus)
	for _, b := range st.Bus {
		summary.BusByAddress[b.Address]++
	}

	for _, r := range st.Topology {
		summary.ExecutionOrder = append(summary.ExecutionOrder, r.Instance)
	}

	summary.UniqueTargets = len(summary.TargetDistribution)

	return summary
}
