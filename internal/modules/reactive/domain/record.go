package domain

import "time"

// Record is a message received from an external broker on its way into a topic. Kind names
// the broker ("kafka", "amqp") and Source the topic or queue it was read from.
type Record struct {
	Kind       string
	Source     string
	Key        string
	Value      []byte
	Headers    map[string]string
	ReceivedAt time.Time
}
