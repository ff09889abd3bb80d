package cohort

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// TicketCounter is a durable take-a-ticket primitive backed by a single
// file on a shared filesystem. Concurrent callers, whether goroutines
// or unrelated processes, each observe a distinct value of a counter
// starting at 0, with no gaps. The file holds one human-readable
// non-negative integer; an absent or empty file counts as 0.
//
// Mutual exclusion uses an exclusive flock(2) on the counter file. The
// lock dies with its holder, so a crashed instance never wedges the
// cohort.
type TicketCounter struct {
	Path string
}

// Next atomically reads the counter, increments it on disk, and returns
// the value read. Any failure is fatal for the caller: proceeding with
// a guessed offset would silently bind several instances to the same
// resource.
func (c *TicketCounter) Next() (int, error) {
	f, err := os.OpenFile(c.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open counter file %s: %w", c.Path, err)
	}
	// Closing the descriptor releases the lock on every return path.
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("lock counter file %s: %w", c.Path, err)
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return 0, fmt.Errorf("read counter file %s: %w", c.Path, err)
	}
	ticket := 0
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 {
		ticket, err = strconv.Atoi(string(trimmed))
		if err != nil || ticket < 0 {
			return 0, fmt.Errorf("corrupt counter file %s: %q", c.Path, trimmed)
		}
	}

	if err := f.Truncate(0); err != nil {
		return 0, fmt.Errorf("truncate counter file %s: %w", c.Path, err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(ticket+1)+"\n"), 0); err != nil {
		return 0, fmt.Errorf("update counter file %s: %w", c.Path, err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("sync counter file %s: %w", c.Path, err)
	}

	return ticket, nil
}
