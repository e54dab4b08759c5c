package mqtt

import "fmt"

// QoS is an MQTT quality of service level.
type QoS byte

const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
	ExactlyOnce QoS = 2
)

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "AtMostOnce"
	case AtLeastOnce:
		return "AtLeastOnce"
	case ExactlyOnce:
		return "ExactlyOnce"
	default:
		return fmt.Sprintf("QoS(%d)", byte(q))
	}
}

// Message is an MQTT application message.
type Message struct {
	Topic   string
	Payload []byte
	QoS     QoS
	Retain  bool
}

// NewMessage returns a non-retained QoS 1 message.
func NewMessage(topic string, payload []byte) Message {
	return Message{Topic: topic, Payload: payload, QoS: AtLeastOnce}
}

// WithQoS returns a copy of m with the given QoS.
func (m Message) WithQoS(q QoS) Message {
	m.QoS = q
	return m
}

// WithRetain returns a retained copy of m.
func (m Message) WithRetain() Message {
	m.Retain = true
	return m
}

// IsEmpty reports whether the payload is empty. A retained empty message
// clears the retained value of its topic.
func (m Message) IsEmpty() bool {
	return len(m.Payload) == 0
}

// PayloadString returns the payload as a string.
func (m Message) PayloadString() string {
	return string(m.Payload)
}

func (m Message) String() string {
	return fmt.Sprintf("%s [qos=%d retain=%t] %q", m.Topic, m.QoS, m.Retain, m.Payload)
}
