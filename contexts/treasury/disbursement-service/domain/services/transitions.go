package services

import "tokendrip/contexts/treasury/disbursement-service/domain/entities"

var allowedTransitions = map[entities.DisbursementStatus][]entities.DisbursementStatus{
	entities.DisbursementStatusPending: {
		entities.DisbursementStatusSubmitted,
		entities.DisbursementStatusFailed,
	},
	entities.DisbursementStatusSubmitted: {
		entities.DisbursementStatusConfirmed,
		entities.DisbursementStatusFailed,
	},
}

// CanTransition reports whether a disbursement may move from one status to another.
// CONFIRMED and FAILED have no outgoing edges.
func CanTransition(from entities.DisbursementStatus, to entities.DisbursementStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
