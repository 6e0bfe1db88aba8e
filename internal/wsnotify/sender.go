// Package wsnotify forwards profile monitor notifications to a websocket
// endpoint.
package wsnotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	keypad "libdb.so/go-keypad"
)

const (
	queueSize     = 16
	retryDuration = time.Second
	writeTimeout  = 5 * time.Second
)

var errClosedByPeer = errors.New("wsnotify: connection closed by peer")

// Sender keeps a websocket connection open and writes one message per
// notification. Notifications queued while disconnected are sent once the
// connection is back, oldest dropped first when the queue is full.
type Sender struct {
	url    string
	logger *slog.Logger
	retry  time.Duration
	queue  chan []byte
}

// New creates a sender for the given ws:// or wss:// URL. Nothing is dialed
// until Run is called.
func New(url string, logger *slog.Logger) *Sender {
	return &Sender{
		url:    url,
		logger: logger.With("endpoint", url),
		retry:  retryDuration,
		queue:  make(chan []byte, queueSize),
	}
}

// Notify queues n. It never blocks, so it can be used as a
// [keypad.NotifyFunc].
func (s *Sender) Notify(n keypad.Notification) {
	p, err := EncodeNotification(n)
	if err != nil {
		s.logger.Error(
			"cannot encode notification",
			"err", err)
		return
	}

	for {
		select {
		case s.queue <- p:
			return
		default:
		}

		select {
		case <-s.queue:
			s.logger.Warn("notification queue full, dropping oldest")
		default:
		}
	}
}

// Run dials the endpoint and writes queued notifications until ctx is done,
// reconnecting whenever the connection drops.
func (s *Sender) Run(ctx context.Context) error {
	for {
		err := s.connect(ctx)
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		s.logger.Warn(
			"websocket disconnected, reconnecting",
			"err", err)

		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-time.After(s.retry):
		}
	}
}

func (s *Sender) connect(ctx context.Context) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("cannot dial: %w", err)
	}
	defer ws.Close()

	s.logger.Info("websocket connected")

	readErr := make(chan error, 1)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		readErr <- s.read(ws)
	}()

	err = s.write(ctx, ws, readDone, readErr)

	// Unblock the reader.
	ws.Close()
	<-readDone
	return err
}

func (s *Sender) write(ctx context.Context, ws *websocket.Conn, readDone <-chan struct{}, readErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			return ctx.Err()

		case <-readDone:
			return errors.Join(errClosedByPeer, <-readErr)

		case p := <-s.queue:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, p); err != nil {
				s.logger.Error(
					"notification lost",
					"err", err)
				return fmt.Errorf("cannot write: %w", err)
			}
		}
	}
}

// read drains incoming messages so control frames are handled, and returns
// when the connection closes.
func (s *Sender) read(ws *websocket.Conn) error {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				return err
			}
			return nil
		}
	}
}
