package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Commands          map[string]*OperationStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single broker connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	ClientID  string
	Broker    string
	Published int
	Received  int
}

// OperationStats counts the commands of one operation kind by their last
// reported status.
type OperationStats struct {
	last     map[string]string
	Rejected int
}

// ByStatus returns the number of commands per last status.
func (o *OperationStats) ByStatus() map[string]int {
	counts := make(map[string]int)
	for _, s := range o.last {
		counts[s]++
	}
	return counts
}

// Commands returns the number of distinct commands.
func (o *OperationStats) Commands() int {
	return len(o.last)
}

// CollectStats reads the capture file and aggregates its events.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		Commands:          make(map[string]*OperationStats),
	}

	err = reader.Each(func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if conn.ClientID == "" {
		conn.ClientID = event.ClientID
	}
	if conn.Broker == "" {
		conn.Broker = event.Broker
	}
	if event.Packet != nil && event.Packet.Type == log.PacketPublish {
		if event.Direction == log.DirectionOut {
			conn.Published++
		} else {
			conn.Received++
		}
	}

	if c := event.Command; c != nil {
		op, ok := s.Commands[c.Operation]
		if !ok {
			op = &OperationStats{last: make(map[string]string)}
			s.Commands[c.Operation] = op
		}
		if c.Rejected {
			op.Rejected++
		} else {
			op.last[c.Topic] = c.Status
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== tedge-agent Protocol Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerSession, log.LayerOperation} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Commands) > 0 {
		fmt.Fprintln(w, "Commands:")
		ops := make([]string, 0, len(stats.Commands))
		for op := range stats.Commands {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			opStats := stats.Commands[op]
			fmt.Fprintf(w, "  %s: %d", op, opStats.Commands())
			byStatus := opStats.ByStatus()
			statuses := make([]string, 0, len(byStatus))
			for s := range byStatus {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Fprintf(w, " %s=%d", s, byStatus[s])
			}
			if opStats.Rejected > 0 {
				fmt.Fprintf(w, " rejected=%d", opStats.Rejected)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.ClientID != "" {
				fmt.Fprintf(w, "           Client: %s\n", c.stats.ClientID)
			}
			if c.stats.Broker != "" {
				fmt.Fprintf(w, "           Broker: %s\n", c.stats.Broker)
			}
			if c.stats.Published > 0 || c.stats.Received > 0 {
				fmt.Fprintf(w, "           Publish: %d out, %d in\n", c.stats.Published, c.stats.Received)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
