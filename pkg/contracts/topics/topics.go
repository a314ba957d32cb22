package topics

const (
	// Mesa
	TableEvents = "craps_table_events"

	// Apostas
	BetPlaced = "craps_bet_placed"

	// DLQs
	TableEventsDLQ = "craps_table_events_dlq"
)
