package livefeed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/askstuart/internal/exchange"
)

// Client subscribes to a remote live feed. It satisfies Subscriber, so a
// chat client can run against a deployed server instead of a store.
type Client struct {
	// URL is the ws:// or wss:// address of the feed endpoint.
	URL    string
	Dialer *websocket.Dialer
}

// Subscribe dials the feed and converts frames back into snapshots.
func (c *Client) Subscribe(ctx context.Context, since time.Time) (<-chan exchange.Snapshot, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("livefeed: parse url: %w", err)
	}
	if !since.IsZero() {
		q := u.Query()
		q.Set("since", strconv.FormatInt(since.UnixMilli(), 10))
		u.RawQuery = q.Encode()
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("livefeed: dial: %w", err)
	}

	out := make(chan exchange.Snapshot, 1)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var f Frame
			if err := conn.ReadJSON(&f); err != nil {
				if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return
				}
				send(ctx, out, exchange.Snapshot{Err: fmt.Errorf("livefeed: read: %w", err)})
				return
			}
			switch f.Type {
			case FrameSnapshot:
				if !send(ctx, out, exchange.Snapshot{Records: f.Messages}) {
					return
				}
			case FrameError:
				send(ctx, out, exchange.Snapshot{Err: frameErr(f)})
				return
			}
		}
	}()
	return out, nil
}

func frameErr(f Frame) error {
	if f.Code == CodePermissionDenied {
		return fmt.Errorf("%w: %s", exchange.ErrPermissionDenied, f.Error)
	}
	return errors.New(f.Error)
}

func send(ctx context.Context, out chan<- exchange.Snapshot, snap exchange.Snapshot) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}
