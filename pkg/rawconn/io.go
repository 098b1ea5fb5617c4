package rawconn

import (
	"net"
	"time"

	"github.com/corvidlabs/rawcore/pkg/rawerr"
)

// IsAlive probes the connection with a short read deadline. A timeout means
// the connection is idle and alive; any other outcome (data arriving
// unexpectedly, or an error) is treated as dead, since an HTTP/1.1
// keep-alive peer should never send unsolicited bytes between requests.
func (c *Conn) IsAlive() bool {
	c.SetReadDeadline(time.Now().Add(1 * time.Millisecond))
	defer c.SetReadDeadline(time.Time{})

	one := make([]byte, 1)
	_, err := c.Read(one)

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	return false
}

// WriteDeadline writes p to the connection, enforcing deadline. A deadline
// of the zero Time means no limit.
func (c *Conn) WriteDeadline(p []byte, deadline time.Time) error {
	if !deadline.IsZero() {
		if err := c.SetWriteDeadline(deadline); err != nil {
			return rawerr.NewIOError("setting write deadline", err)
		}
		defer c.SetWriteDeadline(time.Time{})
	}

	written := 0
	for written < len(p) {
		n, err := c.Write(p[written:])
		if err != nil {
			c.MarkUnhealthy()
			return rawerr.NewIOError("writing request", err)
		}
		written += n
	}
	return nil
}
