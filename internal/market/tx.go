package market

// Tx is the already-serialized transaction envelope an event arrives in:
// identity of the submitted transaction plus the chain state current at its
// point in the log. The engines never read a clock themselves.
type Tx struct {
	ID              string
	Sender          string
	SenderPublicKey string
	Height          int64
	Timestamp       int64
}
