package restart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultRebootCommand is the command run to reboot the device.
var DefaultRebootCommand = []string{"init", "6"}

// ErrNoRebootCommand is returned when no reboot command is configured.
var ErrNoRebootCommand = errors.New("restart: no reboot command")

// Rebooter triggers a device reboot. Reboot returns once the reboot has been
// requested, not when the device goes down.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// CommandRebooter reboots the device by running an external command.
type CommandRebooter struct {
	Args []string
}

// Reboot runs the command and reports its failure, stderr included.
func (r CommandRebooter) Reboot(ctx context.Context) error {
	if len(r.Args) == 0 {
		return ErrNoRebootCommand
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Args[0], r.Args[1:]...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", strings.Join(r.Args, " "), err, msg)
		}
		return fmt.Errorf("%s: %w", strings.Join(r.Args, " "), err)
	}
	return nil
}
