package offsets

import "carbonpay-backend/internal/domain"

// CanTransition reports whether review may move a request from one status to
// another. Approved and Rejected are terminal.
func CanTransition(from, to domain.RequestStatus) bool {
	switch from {
	case domain.RequestPending:
		return to == domain.RequestApproved || to == domain.RequestRejected
	default:
		return false
	}
}
