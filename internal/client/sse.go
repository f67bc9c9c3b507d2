package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/printerpal/printerpal/internal/logging"
	"github.com/printerpal/printerpal/internal/status"
)

// LinkState describes the health of the event-stream connection.
type LinkState int

const (
	// LinkLive means updates are flowing.
	LinkLive LinkState = iota
	// LinkReconnecting means the stream dropped and the subscriber is
	// backing off before the next attempt.
	LinkReconnecting
)

func (s LinkState) String() string {
	if s == LinkLive {
		return "live"
	}
	return "reconnecting"
}

// Subscriber consumes the server's event stream, reconnecting with capped
// exponential backoff when the connection drops.
type Subscriber struct {
	client       *Client
	reconnectMin time.Duration
	reconnectMax time.Duration
}

// NewSubscriber creates a subscriber for c's event stream.
func NewSubscriber(c *Client) *Subscriber {
	return &Subscriber{
		client:       c,
		reconnectMin: 1 * time.Second,
		reconnectMax: 30 * time.Second,
	}
}

// Subscribe starts consuming events. Updates arrive on the first channel,
// link transitions on the second. Both close when ctx is cancelled. Slow
// consumers lose intermediate updates; each update carries complete state
// so drops are harmless.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan status.StatusUpdate, <-chan LinkState) {
	updates := make(chan status.StatusUpdate, 8)
	links := make(chan LinkState, 4)

	go func() {
		defer close(updates)
		defer close(links)
		s.loop(ctx, updates, links)
	}()

	return updates, links
}

func (s *Subscriber) loop(ctx context.Context, updates chan<- status.StatusUpdate, links chan<- LinkState) {
	delay := s.reconnectMin

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		gotEvent, err := s.connect(ctx, updates, links)
		if ctx.Err() != nil {
			return
		}
		if gotEvent {
			delay = s.reconnectMin
		}
		if err != nil {
			logging.Debug("event stream dropped",
				zap.Error(err),
				zap.Duration("retry_in", delay))
		}

		sendLink(links, LinkReconnecting)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.reconnectMax {
			delay = s.reconnectMax
		}
	}
}

// connect holds one stream open until it breaks. It reports whether at
// least one event was delivered, which resets the backoff.
func (s *Subscriber) connect(ctx context.Context, updates chan<- status.StatusUpdate, links chan<- LinkState) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.baseURL+"/events", nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	s.client.applyToken(req)

	// No overall timeout: the stream stays open indefinitely.
	streamClient := &http.Client{Transport: s.client.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	gotEvent := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var eventType, data string
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if data != "" && s.dispatch(eventType, data, updates, links) {
				gotEvent = true
			}
			eventType = ""
			data = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if after, ok := strings.CutPrefix(line, "event:"); ok {
			eventType = strings.TrimSpace(after)
		} else if after, ok := strings.CutPrefix(line, "data:"); ok {
			data = strings.TrimSpace(after)
		}
	}
	if err := scanner.Err(); err != nil {
		return gotEvent, fmt.Errorf("read stream: %w", err)
	}
	return gotEvent, fmt.Errorf("stream closed")
}

func (s *Subscriber) dispatch(eventType, data string, updates chan<- status.StatusUpdate, links chan<- LinkState) bool {
	if eventType != "" && eventType != "status" {
		logging.Debug("ignoring event", zap.String("type", eventType))
		return false
	}

	var update status.StatusUpdate
	if err := json.Unmarshal([]byte(data), &update); err != nil {
		logging.Debug("bad event payload", zap.Error(err))
		return false
	}

	sendLink(links, LinkLive)
	select {
	case updates <- update:
	default:
		logging.Debug("update dropped, consumer slow")
	}
	return true
}

func sendLink(ch chan<- LinkState, state LinkState) {
	select {
	case ch <- state:
	default:
	}
}
