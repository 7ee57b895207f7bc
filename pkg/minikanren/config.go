package minikanren

// config.go: search heuristic selection and solver configuration shared by
// Model and Solver. Kept separate from solver.go because every Model carries
// its own SolverConfig independent of any particular Solver instance.

// VariableOrderingHeuristic defines strategies for selecting the next variable to assign.
type VariableOrderingHeuristic int

const (
	// HeuristicDomDeg uses domain size / degree (constraints) - smallest first.
	HeuristicDomDeg VariableOrderingHeuristic = iota
	// HeuristicDom uses domain size only - smallest first.
	HeuristicDom
	// HeuristicDeg uses degree (constraints) only - largest first.
	HeuristicDeg
	// HeuristicLex uses lexicographic order (variable ID).
	HeuristicLex
)

// ValueOrderingHeuristic defines strategies for ordering values within a domain.
// Solver does not consult this setting: it always tries values in ascending order.
type ValueOrderingHeuristic int

const (
	// ValueOrderAsc orders values ascending (1,2,3,...). The food solver relies
	// on this ordering to bias search toward low gram quantities first, which
	// tends to find low-error assignments earlier in the search.
	ValueOrderAsc ValueOrderingHeuristic = iota
	// ValueOrderDesc orders values descending (...,3,2,1).
	ValueOrderDesc
	// ValueOrderRandom orders values randomly; useful for diversifying restarts
	// across parallel exclusion-job workers that would otherwise all probe the
	// same branch of the search tree first.
	ValueOrderRandom
)

// SolverConfig holds configuration for the finite-domain solver.
type SolverConfig struct {
	VariableHeuristic VariableOrderingHeuristic
	ValueHeuristic    ValueOrderingHeuristic
	RandomSeed        int64
}

// DefaultSolverConfig returns a default solver configuration.
func DefaultSolverConfig() *SolverConfig {
	return &SolverConfig{
		VariableHeuristic: HeuristicDomDeg,
		ValueHeuristic:    ValueOrderAsc,
		RandomSeed:        42,
	}
}
