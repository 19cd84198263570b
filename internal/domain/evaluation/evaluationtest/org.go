package evaluationtest

import (
	"context"
	"sync"

	"evalsvc/internal/domain/evaluation"
)

// OrgLookup resolves external ids from a fixed table and counts lookups.
type OrgLookup struct {
	mu      sync.Mutex
	IDs     map[string]string
	Err     error
	lookups int
}

func NewOrgLookup(ids map[string]string) *OrgLookup {
	if ids == nil {
		ids = map[string]string{}
	}
	return &OrgLookup{IDs: ids}
}

func (o *OrgLookup) ResolveInternalID(_ context.Context, externalID string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lookups++
	if o.Err != nil {
		return "", o.Err
	}
	id, ok := o.IDs[externalID]
	if !ok {
		return "", evaluation.ErrExternalRefNotFound
	}
	return id, nil
}

func (o *OrgLookup) Lookups() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lookups
}
