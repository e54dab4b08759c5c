// Package restart implements the restart manager actor.
//
// On an init restart command the manager records the pending restart in the
// agent state file, drops a marker in a volatile run directory, reports the
// command as executing and triggers the reboot. When the agent starts again
// it resumes the pending command: a missing marker proves that the device
// rebooted and the command succeeds, a marker still in place means that the
// system did not restart and the command fails.
package restart
