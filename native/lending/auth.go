package lending

import "github.com/ethereum/go-ethereum/common"

// StaticOperators is a fixed operator allow-list, typically sourced from the
// node configuration.
type StaticOperators map[common.Address]struct{}

// NewStaticOperators builds an operator set from the given addresses.
func NewStaticOperators(operators ...common.Address) StaticOperators {
	set := make(StaticOperators, len(operators))
	for _, op := range operators {
		set[op] = struct{}{}
	}
	return set
}

// IsAuthorizedOperator implements the OperatorSet interface.
func (s StaticOperators) IsAuthorizedOperator(account common.Address) bool {
	_, ok := s[account]
	return ok
}
