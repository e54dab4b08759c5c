// Package persistence stores the agent state that must survive a restart
// of the agent or of the device, such as a restart command in progress.
package persistence
