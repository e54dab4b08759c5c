// Package discovery finds the MQTT broker with mDNS/DNS-SD.
//
// Brokers announce the _mqtt._tcp service (or _secure-mqtt._tcp when TLS is
// required). The first announcement carrying a port and an address is used.
//
// # TXT records
//
// Announcements may carry key=value TXT strings. The agent reads:
//   - tls: "1" or "true" when the broker expects TLS on the advertised port
//   - root: the topic root when it differs from "te"
package discovery
