package sonic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Stream is one live connection to the speech model. Events() yields inbound
// events until the connection ends; after the channel closes, Err() reports
// whether the end was an error or a clean shutdown.
type Stream interface {
	Send(ev Event) error
	Events() <-chan Event
	Err() error
	Close() error
}

// Dialer opens Streams against a configured endpoint.
type Dialer struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	EventBuffer      int
}

func (d Dialer) DialSession(ctx context.Context) (Stream, error) {
	if strings.TrimSpace(d.URL) == "" {
		return nil, fmt.Errorf("speech model url is required")
	}
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial speech model: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial speech model: %w", err)
	}

	buffer := d.EventBuffer
	if buffer <= 0 {
		buffer = 256
	}
	s := &wsStream{
		conn:         conn,
		writeTimeout: d.WriteTimeout,
		events:       make(chan Event, buffer),
		closed:       make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

type wsStream struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	errMu   sync.Mutex
	readErr error

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *wsStream) Send(ev Event) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.closed:
		return fmt.Errorf("speech model stream is closed")
	default:
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsStream) Events() <-chan Event {
	return s.events
}

func (s *wsStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.readErr
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
	return nil
}

func (s *wsStream) readLoop() {
	defer close(s.events)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				// Local close, not a transport failure.
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					s.setErr(err)
				}
			}
			return
		}
		if messageType != websocket.TextMessage {
			s.setErr(fmt.Errorf("speech model sent non-text frame"))
			_ = s.Close()
			return
		}
		ev, err := DecodeEvent(data)
		if err != nil {
			s.setErr(fmt.Errorf("decode speech model event: %w", err))
			_ = s.Close()
			return
		}
		select {
		case s.events <- ev:
		case <-s.closed:
			return
		}
	}
}

func (s *wsStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.readErr == nil {
		s.readErr = err
	}
}
