package ui

// Modal is the overlay that owns keyboard input. A nil Modal means the main
// list has focus. Overlays never stack: opening one replaces the current
// value, and only ErrorModal keeps a reference to the overlay it interrupted.
type Modal interface {
	modal()
}

// SearchModal edits the filter. Committed is the query in effect when the
// overlay opened; Draft is what the operator is typing.
type SearchModal struct {
	Committed string
	Draft     string
}

// DeleteModal asks for "yes" before TargetID is removed.
type DeleteModal struct {
	TargetID string
	Draft    string
}

// ErrorModal shows a message until any key is pressed. Return, when set, is
// reopened on dismissal with its validation marker cleared.
type ErrorModal struct {
	Message string
	Return  Modal
}

type HostKeyChoice int

const (
	Accept HostKeyChoice = iota
	Reject
)

// HostKeyModal asks whether to drop the stale known_hosts entry of TargetID
// and connect again.
type HostKeyModal struct {
	TargetID string
	Choice   HostKeyChoice
}

func (*SearchModal) modal()  {}
func (*DeleteModal) modal()  {}
func (*FormModal) modal()    {}
func (*ErrorModal) modal()   {}
func (*HostKeyModal) modal() {}

// modalName names the active overlay for logs.
func modalName(m Modal) string {
	switch m.(type) {
	case nil:
		return "main"
	case *SearchModal:
		return "search"
	case *DeleteModal:
		return "delete"
	case *FormModal:
		return "form"
	case *ErrorModal:
		return "error"
	case *HostKeyModal:
		return "host_key"
	default:
		return "unknown"
	}
}
