package evaluation

// EvaluatorProgress is everything the status rules need to know about one
// evaluator's work on one employee for one step.
type EvaluatorProgress struct {
	EvaluatorID              string
	AssignedWbsCount         int
	CompletedEvaluationCount int
	Approval                 *StepApproval
	Revision                 *RevisionRecipient
}

func (p EvaluatorProgress) IsSubmitted() bool {
	return p.AssignedWbsCount > 0 && p.CompletedEvaluationCount == p.AssignedWbsCount
}

// EvaluatorStatus applies the fixed precedence; the first matching rule wins.
func EvaluatorStatus(p EvaluatorProgress) Status {
	switch {
	case p.Revision != nil && p.Revision.IsCompleted:
		return StatusRevisionCompleted
	case p.Revision != nil:
		return StatusRevisionRequested
	case p.Approval != nil && p.Approval.Status == ApprovalApproved:
		return StatusApproved
	case p.IsSubmitted():
		return StatusPending
	case p.CompletedEvaluationCount > 0 && p.CompletedEvaluationCount < p.AssignedWbsCount:
		return StatusInProgress
	default:
		return StatusNone
	}
}

// statusRank orders step statuses for merging; higher surfaces first.
var statusRank = map[Status]int{
	StatusNone:              0,
	StatusApproved:          1,
	StatusInProgress:        2,
	StatusPending:           3,
	StatusRevisionRequested: 4,
	StatusRevisionCompleted: 5,
}

// Rank returns the merge priority of s. Unknown statuses rank below none.
func Rank(s Status) int {
	if rank, ok := statusRank[s]; ok {
		return rank
	}
	return -1
}

// MergeStatuses reduces per-evaluator statuses to the step status.
func MergeStatuses(statuses ...Status) Status {
	merged := StatusNone
	for _, s := range statuses {
		if Rank(s) > Rank(merged) {
			merged = s
		}
	}
	return merged
}
