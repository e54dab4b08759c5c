// Package topics implements the MQTT topic scheme of the agent.
//
// A topic is made of a root prefix, an entity topic id and a channel:
//
//	te/device/child-foo///cmd/restart/c8y-123
//	└┬┘└──────┬─────────┘ └────────┬────────┘
//	root   entity id            channel
//
// Entity topic ids always have four segments. The default scheme uses
// device/<name>// for devices and device/<name>/service/<service> for services;
// every default-scheme entity resolves to the main device device/main//.
package topics
