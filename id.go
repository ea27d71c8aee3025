package accredit

import "github.com/xraph/accredit/id"

// ID is the identifier type for claims and background jobs.
type ID = id.ID

// ClaimID identifies a credit claim.
type ClaimID = id.ClaimID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
