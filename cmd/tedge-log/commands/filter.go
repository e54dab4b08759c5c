package commands

import (
	"fmt"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

// RunFilter copies the events matching filter to a new capture file and
// returns how many were written.
func RunFilter(path string, filter log.Filter, output string) (int, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer logger.Close()

	count := 0
	err = reader.Each(func(event log.Event) error {
		logger.Log(event)
		count++
		return nil
	})
	return count, err
}
