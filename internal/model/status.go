package model

// transitions lists every legal status change. Signature-driven changes
// (sent -> partial -> executed) are included so the table is the single
// reference for monotonicity checks.
var transitions = map[Status][]Status{
	StatusDraft:            {StatusPendingReview, StatusSentForSignature, StatusCancelled},
	StatusPendingReview:    {StatusSentForSignature, StatusCancelled},
	StatusSentForSignature: {StatusPartiallySigned, StatusFullyExecuted, StatusCancelled},
	StatusPartiallySigned:  {StatusFullyExecuted, StatusCancelled},
	StatusFullyExecuted:    {StatusActive},
	StatusActive:           {StatusCompleted},
}

// CanTransition reports whether a contract may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a *TransitionError when from -> to is not legal.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// SignedStatus derives the status a signable contract should hold given the
// roles it requires and the roles that have signed. It returns current
// unchanged when no signature has been captured yet.
func SignedStatus(current Status, required []SignerRole, signed []SignerRole) Status {
	have := make(map[SignerRole]bool, len(signed))
	for _, r := range signed {
		have[r] = true
	}
	missing, captured := 0, 0
	for _, r := range required {
		if have[r] {
			captured++
		} else {
			missing++
		}
	}
	switch {
	case missing == 0:
		return StatusFullyExecuted
	case captured > 0:
		return StatusPartiallySigned
	default:
		return current
	}
}
