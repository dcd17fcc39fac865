package models

import "sort"

// Legacy transaction type codes the ledger treats specially.
const (
	TypeOpeningBalance     = "OB"
	TypeOpeningHoldBalance = "OHB"
	TypeTransfer           = "OT"
	TypeHoldMergeTransfer  = "HMT"
	TypeHoldAllocation     = "HOA"
	TypeHoldRelease        = "HOR"
	TypeTransferIn         = "TRIN"
	TypeSubAccountTransfer = "SUBT"
	TypeCashToSpends       = "CTS"
)

// TypeSet is a set of transaction type codes.
type TypeSet map[string]struct{}

func NewTypeSet(types ...string) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

func (s TypeSet) Contains(t string) bool {
	_, ok := s[t]
	return ok
}

// Union returns a new set holding the members of s and others.
func (s TypeSet) Union(others ...TypeSet) TypeSet {
	out := make(TypeSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	for _, o := range others {
		for t := range o {
			out[t] = struct{}{}
		}
	}
	return out
}

// Slice returns the members sorted.
func (s TypeSet) Slice() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var (
	MigrationTypes = NewTypeSet(TypeOpeningBalance, TypeOpeningHoldBalance)

	DebitHoldTypes         = NewTypeSet(TypeHoldAllocation)
	CreditHoldTypes        = NewTypeSet(TypeHoldRelease)
	BidirectionalHoldTypes = NewTypeSet(TypeOpeningHoldBalance, TypeHoldMergeTransfer)
	HoldTypes              = CreditHoldTypes.Union(DebitHoldTypes, BidirectionalHoldTypes)

	// NormalizerSkipTypes are legacy no-op legs when they arrive second and empty.
	NormalizerSkipTypes = NewTypeSet(TypeSubAccountTransfer, TypeCashToSpends)
)

// MergeType remaps a transaction type for merge reversals and reinstatements
// so that no migration-typed transaction is ever re-posted.
func MergeType(t string) string {
	switch t {
	case TypeOpeningBalance:
		return TypeTransfer
	case TypeOpeningHoldBalance:
		return TypeHoldMergeTransfer
	}
	return t
}
