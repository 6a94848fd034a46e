package domain

// Status is the lifecycle stage of a deployed bot. It is part of the
// snapshot storage key, so a status change is a key move, not a field
// mutation.
type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusStopped:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status machine allows moving from s
// to the given status. Stopped is terminal.
func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusActive:
		return to == StatusPaused || to == StatusStopped
	case StatusPaused:
		return to == StatusActive || to == StatusStopped
	}
	return false
}

// AssetHandling is the balance disposition applied when a bot is stopped.
type AssetHandling string

const (
	// AssetHandlingQuoteOnly sells all available base into quote.
	AssetHandlingQuoteOnly AssetHandling = "quote_only"
	// AssetHandlingBaseOnly spends all available quote on base.
	AssetHandlingBaseOnly AssetHandling = "base_only"
	// AssetHandlingIgnore leaves balances as they are.
	AssetHandlingIgnore AssetHandling = "ignore"
)

// Valid reports whether h is one of the known handling modes.
func (h AssetHandling) Valid() bool {
	switch h {
	case AssetHandlingQuoteOnly, AssetHandlingBaseOnly, AssetHandlingIgnore:
		return true
	}
	return false
}
