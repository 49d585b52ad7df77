package notifications

// Notifier delivers out-of-band alerts about engine events: halts,
// emergency rebalances, repeated execution failures.
type Notifier interface {
	// SendAlert sends an alert with the specified level and message.
	SendAlert(level, message string) error
}

// Noop discards all alerts. Used when no notification channel is
// configured.
type Noop struct{}

func (Noop) SendAlert(level, message string) error { return nil }
