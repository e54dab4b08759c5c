// Package mqtt connects the agent to the local MQTT broker.
//
// The Connection actor owns the only broker connection of the process.
// Other actors register with its Builder: they hand over a TopicFilter and a
// sink for the matching messages, and get back a Sender to publish.
//
// InitSession and ClearSession manage the persistent session used to keep
// commands queued by the broker while the agent is down. InitSession creates
// the session and its subscriptions ahead of time; ClearSession removes it.
//
//	cfg := mqtt.DefaultConfig()
//	cfg.SessionName = "tedge-agent"
//	cfg.CleanSession = false
//	if err := cfg.Subscriptions.Add("te/device/main///cmd/+/+"); err != nil {
//		return err
//	}
//	if err := mqtt.InitSession(ctx, cfg); err != nil {
//		return err
//	}
package mqtt
