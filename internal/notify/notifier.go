package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/earthring/scenecast/internal/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single announcement
const DefaultTimeout = 500 * time.Millisecond

// FormatUpdate builds the announcement for chunk id served by self. The
// token only defeats HTTP caches on the consumer side.
func FormatUpdate(self string, id chunkstore.ID, token int64) string {
	return fmt.Sprintf("UPDATE:%s", ChunkURL(self, id, token))
}

// ChunkURL is the document URL carried by an announcement
func ChunkURL(self string, id chunkstore.ID, token int64) string {
	return fmt.Sprintf("http://%s/chunk/%d?_=%d", self, id, token)
}

// Notifier tells a remote consumer that a chunk is ready. Delivery is best
// effort: consumers can always poll the data plane instead.
type Notifier struct {
	transport Transport
	timeout   time.Duration
	now       func() time.Time
	lastToken atomic.Int64
}

// NewNotifier wraps transport. A non-positive timeout means DefaultTimeout.
func NewNotifier(transport Transport, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{
		transport: transport,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Timeout returns the hard per-announcement bound
func (n *Notifier) Timeout() time.Duration {
	return n.timeout
}

// Announce pushes the update message for id to remote, naming self as the
// address to fetch from. It reports whether the transport accepted the
// message within the timeout and never returns an error.
func (n *Notifier) Announce(ctx context.Context, id chunkstore.ID, remote, self string) bool {
	_, ok := n.announce(ctx, id, remote, self)
	return ok
}

// AnnounceURL is Announce that also returns the announced document URL, empty
// when the addresses were invalid.
func (n *Notifier) AnnounceURL(ctx context.Context, id chunkstore.ID, remote, self string) (string, bool) {
	return n.announce(ctx, id, remote, self)
}

func (n *Notifier) announce(ctx context.Context, id chunkstore.ID, remote, self string) (string, bool) {
	logger := log.WithFields(log.Fields{"chunk_id": id, "endpoint": remote})

	if err := config.ValidateEndpoint(remote); err != nil {
		logger.WithError(err).Warn("Invalid notification address")
		return "", false
	}
	if err := config.ValidateEndpoint(self); err != nil {
		logger.WithError(err).Warn("Invalid advertise address")
		return "", false
	}

	token := n.nextToken()
	url := ChunkURL(self, id, token)
	msg := FormatUpdate(self, id, token)

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	// The transport may not honour ctx promptly, so the deadline is enforced here.
	result := make(chan error, 1)
	go func() {
		result <- n.transport.Push(ctx, remote, []byte(msg))
	}()

	select {
	case err := <-result:
		if err != nil {
			logger.WithError(err).Warn("Failed to send chunk notification")
			return url, false
		}
	case <-ctx.Done():
		logger.WithError(errors.Wrapf(ctx.Err(), "after %s", n.timeout)).Warn("Chunk notification timed out")
		return url, false
	}

	logger.WithField("url", url).Debug("Sent chunk notification")
	return url, true
}

// nextToken returns the current Unix time in milliseconds, bumped as needed
// so that tokens strictly increase across calls.
func (n *Notifier) nextToken() int64 {
	now := n.now().UnixMilli()
	for {
		last := n.lastToken.Load()
		next := max(now, last+1)
		if n.lastToken.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Close releases the transport
func (n *Notifier) Close() error {
	return n.transport.Close()
}
