package accredit

import (
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Credits is re-exported from types package.
type Credits = types.Credits

// Entity is re-exported from types package.
type Entity = types.Entity

// Tier is re-exported from entitlement package.
type Tier = entitlement.Tier

// Re-export Credits constructors
var (
	Quarters     = types.Quarters
	Whole        = types.Whole
	ParseCredits = types.ParseCredits
	SumCredits   = types.SumCredits
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
