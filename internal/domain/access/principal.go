package access

// PrincipalKind classifies who is acting: the record's owner, the webhook
// reconciler's service identity, or an administrator.
type PrincipalKind string

const (
	PrincipalOwner   PrincipalKind = "owner"
	PrincipalService PrincipalKind = "service"
	PrincipalAdmin   PrincipalKind = "admin"
)

// Principal is the acting identity stated by every mutating call.
type Principal struct {
	Kind   PrincipalKind
	UserID uint
}

// Owner builds an end-user principal.
func Owner(userID uint) Principal {
	return Principal{Kind: PrincipalOwner, UserID: userID}
}

// Service is the webhook reconciler's identity.
func Service() Principal {
	return Principal{Kind: PrincipalService}
}

// Admin builds an administrator principal.
func Admin(userID uint) Principal {
	return Principal{Kind: PrincipalAdmin, UserID: userID}
}
