package checkout

type Status string

const (
	StatusCart        Status = "CART"
	StatusConfirming  Status = "CONFIRMING"
	StatusOrderPlaced Status = "ORDER_PLACED"
)

// IsTerminal reports whether the order flow has finished. The only way out of
// a terminal status is Continue.
func (s Status) IsTerminal() bool {
	return s == StatusOrderPlaced
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}
