// Package converter routes command messages between the broker and the
// actors that execute them.
//
// The converter subscribes to the command topics of the device it governs,
// decodes each command into the typed request of its operation and forwards
// it to the actor serving that operation. Responses flow back the other way
// and are published, retained, on the command topic.
//
// On startup it announces every operation it serves with a retained {} on
// <root>/<device>/cmd/<op>, before any command is processed.
package converter
