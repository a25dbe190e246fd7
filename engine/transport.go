package engine

// Ticket identifies one transmit attempt for send-outcome telemetry. It is
// opaque to the engine and never used to correlate panel replies.
type Ticket int64

// TransportHint lets the platform pick among transports (SIM slot, dual
// modem) without the engine embedding carrier policy.
type TransportHint string

const HintDefault TransportHint = ""

// Transport hands an SMS body to the device's messaging stack,
// fire-and-forget. Delivery reports come back through
// Correlator.OnSendOutcome; panel replies through Correlator.OnIncoming.
type Transport interface {
	Transmit(text string, hint TransportHint) (Ticket, error)
}
