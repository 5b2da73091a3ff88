package access

import "errors"

// ErrUnauthorized means the principal lacks the capability for the
// operation. Never retried.
var ErrUnauthorized = errors.New("principal not permitted to perform operation")

// Operation names a lifecycle or query operation subject to authorization.
type Operation string

const (
	OpRead        Operation = "read"
	OpCreateFree  Operation = "create_free"
	OpUpgrade     Operation = "upgrade"
	OpCancel      Operation = "cancel"
	OpDowngrade   Operation = "downgrade"
	OpReconcile   Operation = "reconcile"
	OpDiagnostics Operation = "diagnostics"
	OpAudit       Operation = "audit"
)

// ownerOps are the operations an end user may invoke, and only against
// their own record.
var ownerOps = map[Operation]bool{
	OpRead:       true,
	OpCreateFree: true,
	OpUpgrade:    true,
	OpCancel:     true,
	OpDowngrade:  true,
}

// serviceOps are the operations the webhook reconciler's identity may
// invoke, against any record. The service principal applies
// provider-sourced transitions but never initiates an upgrade or cancel on
// a user's behalf.
var serviceOps = map[Operation]bool{
	OpRead:      true,
	OpReconcile: true,
}

// Gate decides which principal may invoke which operation on which
// record. It is consulted before any store access.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

// Authorize returns ErrUnauthorized unless the principal holds the
// capability for op against the record owned by targetUserID.
func (g *Gate) Authorize(p Principal, op Operation, targetUserID uint) error {
	switch p.Kind {
	case PrincipalAdmin:
		return nil
	case PrincipalService:
		if serviceOps[op] {
			return nil
		}
	case PrincipalOwner:
		if ownerOps[op] && p.UserID != 0 && p.UserID == targetUserID {
			return nil
		}
	}
	return ErrUnauthorized
}
