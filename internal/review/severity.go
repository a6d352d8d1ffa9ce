package review

import "proctorportal/backend/internal/config"

// Weight returns the risk weight of a violation type.
func Weight(violationType string) int {
	if w, ok := config.ViolationWeights[violationType]; ok {
		return w
	}
	return config.DefaultViolationWeight
}
