package subscriptions

// Status is the lifecycle state of a subscription record.
type Status string

const (
	StatusFree       Status = "free"
	StatusActive     Status = "active"
	StatusTrialing   Status = "trialing"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
	StatusIncomplete Status = "incomplete"
)

// PaidFamily reports whether the status requires a provider subscription
// object to exist. free and canceled records carry no live provider
// subscription.
func (s Status) PaidFamily() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue, StatusIncomplete:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusFree, StatusActive, StatusTrialing, StatusPastDue, StatusCanceled, StatusIncomplete:
		return true
	}
	return false
}

type transition struct {
	From Status
	To   Status
}

// validTransitions defines all allowed state transitions. Same-state
// entries within the paid family allow period/price refreshes from
// provider events without a status change.
var validTransitions = map[transition]bool{
	{StatusFree, StatusActive}:     true, // upgrade or provider activation
	{StatusFree, StatusTrialing}:   true, // upgrade into a trial
	{StatusFree, StatusIncomplete}: true, // upgrade awaiting first payment

	{StatusActive, StatusActive}:     true,
	{StatusActive, StatusTrialing}:   true,
	{StatusActive, StatusPastDue}:    true, // payment failed
	{StatusActive, StatusCanceled}:   true,
	{StatusTrialing, StatusTrialing}: true,
	{StatusTrialing, StatusActive}:   true, // trial converted
	{StatusTrialing, StatusPastDue}:  true,
	{StatusTrialing, StatusCanceled}: true,
	{StatusPastDue, StatusPastDue}:   true,
	{StatusPastDue, StatusActive}:    true, // payment recovered
	{StatusPastDue, StatusTrialing}:  true,
	{StatusPastDue, StatusCanceled}:  true,
	{StatusIncomplete, StatusIncomplete}: true,
	{StatusIncomplete, StatusActive}:     true, // first payment settled
	{StatusIncomplete, StatusTrialing}:   true,
	{StatusIncomplete, StatusCanceled}:   true,

	{StatusCanceled, StatusFree}: true, // explicit downgrade or period end
}

// CanTransition checks if a transition from one status to another is valid.
func CanTransition(from, to Status) bool {
	return validTransitions[transition{from, to}]
}
