// Package actor provides the message-passing runtime the agent is built on.
//
// Every component of the agent (the MQTT connection, the operation converter,
// the restart and software managers) is an Actor: an independently scheduled
// goroutine that owns an inbox Mailbox and talks to its peers only by sending
// messages on their mailboxes.
//
// # Mailboxes
//
// A Mailbox is a bounded FIFO queue with a single receiver and any number of
// Sender handles. When the queue is full, Send blocks the producer until the
// receiver consumes a message; messages are never dropped. Messages from one
// sender are received in the order they were sent.
//
// The stream ends when the last Sender handle is closed: Recv then drains the
// queue and reports end of stream. Dropping the receiver (Mailbox.Close) makes
// every pending and future Send fail with ErrMailboxClosed.
//
// # Wiring
//
// Actors are assembled by builders before anything runs. A builder that serves
// requests implements ServiceProvider: a consumer hands it the Sender where
// responses must go and gets back the Sender where requests must be sent.
//
//	restart := restart.NewBuilder(restartConfig)
//	conv := converter.NewBuilder(convConfig, software, restart, broker)
//	rt := actor.NewRuntime(ctx, actor.DefaultEventCapacity)
//	_ = rt.SpawnBuilder(restart)
//	_ = rt.SpawnBuilder(conv)
//
// # Runtime events
//
// The Runtime reports actor lifecycle and failures (including recovered
// panics) on a dedicated Events mailbox, separate from business traffic. The
// runtime itself applies no supervision policy; its owner decides whether a
// failure means restarting a component or shutting the process down.
package actor
