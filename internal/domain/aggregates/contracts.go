package aggregates

import (
	"fmt"
	"strings"
)

// WriteTxOwnership names who opens and finishes the unit of work for a write.
type WriteTxOwnership string

const (
	// WriteTxOwnedByAggregate means every aggregate operation runs in its own
	// unit of work and callers never pass one in.
	WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"
)

// ReadPolicy names how reads are materialized.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped returns detached, fully loaded values from a
	// dedicated unit of work.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
)

type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	Notes            string
}

type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}

// Validate rejects contracts with no name or an unknown policy.
func (c Contract) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("aggregate contract: name is required")
	}
	if c.WriteTxOwnership != WriteTxOwnedByAggregate {
		return fmt.Errorf("aggregate contract %s: unknown tx ownership %q", c.Name, c.WriteTxOwnership)
	}
	if c.ReadPolicy != ReadPolicyInvariantScoped {
		return fmt.Errorf("aggregate contract %s: unknown read policy %q", c.Name, c.ReadPolicy)
	}
	return nil
}

func (c Contract) String() string {
	return fmt.Sprintf("%s(%s, %s)", c.Name, c.WriteTxOwnership, c.ReadPolicy)
}
