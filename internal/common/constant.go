// Package common contains shared constants and sentinel errors used across
// sealpost components.
package common

// ClockObjectID is the ledger's shared clock reference. Approval calls must
// name it so the ledger evaluates the delivery time against its own clock.
const ClockObjectID = "0x6"

// ApprovalModule and ApprovalFunction name the ledger entry point key servers
// dry-run before releasing shares.
const (
	ApprovalModule   = "mandy"
	ApprovalFunction = "seal_approve"
)

// RequestIDHeaderName is the gRPC metadata key used to correlate key server
// calls in logs.
const RequestIDHeaderName = "x-request-id"
