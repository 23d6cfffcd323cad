package checkout

// State is a step of the checkout saga.
type State string

const (
	StateValidating         State = "Validating"
	StateReservingInventory State = "ReservingInventory"
	StateProcessingPayment  State = "ProcessingPayment"
	StatePersisting         State = "Persisting"
	StatePublishing         State = "Publishing"
	StateNotifying          State = "Notifying"
	StateSucceeded          State = "Succeeded"
	StateFailed             State = "Failed"
)

// next is the forward transition table. Any required step that fails moves
// the saga to StateFailed instead.
var next = map[State]State{
	StateValidating:         StateReservingInventory,
	StateReservingInventory: StateProcessingPayment,
	StateProcessingPayment:  StatePersisting,
	StatePersisting:         StatePublishing,
	StatePublishing:         StateNotifying,
	StateNotifying:          StateSucceeded,
}

// Terminal reports whether the saga has finished.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
