// Package evi implements the wire protocol and websocket client for an
// empathic voice interface chat channel.
//
// The channel delivers typed events (metadata, user/assistant speech,
// audio chunks, errors) over a single websocket. Delivery is strictly
// sequential: all handler callbacks run on one goroutine in arrival
// order, so handlers need no internal locking against the socket.
package evi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultChatURL          = "wss://api.hume.ai/v0/evi/chat"
	defaultHandshakeTimeout = 10 * time.Second
)

// Handler receives the socket's lifecycle callbacks. OnOpen fires once
// after a successful connect, before any OnMessage. OnClose fires exactly
// once when delivery ends, on every path. OnError reports transport
// failures and does not imply closure by itself.
type Handler interface {
	OnOpen()
	OnMessage(Event)
	OnClose()
	OnError(err error)
}

// ConnectOptions configures a chat socket connection.
type ConnectOptions struct {
	// Credentials. All three are required by the channel.
	APIKey    string
	SecretKey string
	ConfigID  string

	// BaseURL overrides the production chat endpoint. Tests point this
	// at a local websocket server.
	BaseURL string

	// HandshakeTimeout bounds the websocket dial. Zero means the
	// default of 10 seconds.
	HandshakeTimeout time.Duration

	// Audio declares the outbound audio format, announced to the
	// channel in a session settings message right after connect. Nil
	// skips the announcement.
	Audio *AudioSettings

	Logger *slog.Logger
}

// ChatSocket is one live connection to the voice channel. It is safe to
// send on from any goroutine; inbound events are delivered sequentially
// to the registered Handler.
type ChatSocket struct {
	conn    *websocket.Conn
	handler Handler
	logger  *slog.Logger

	writeMu sync.Mutex
	done    chan struct{}
	closed  sync.Once
}

// Connect dials the chat endpoint, announces session settings, and starts
// delivering events to h. The handler's OnOpen runs before Connect
// returns; OnClose is guaranteed exactly once after that, whether the
// channel ends normally, by Close, or by transport failure.
func Connect(ctx context.Context, opts ConnectOptions, h Handler) (*ChatSocket, error) {
	if h == nil {
		return nil, errors.New("evi: handler is required")
	}

	endpoint := opts.BaseURL
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultChatURL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("evi: parse chat url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", opts.APIKey)
	q.Set("secret_key", opts.SecretKey)
	q.Set("config_id", opts.ConfigID)
	u.RawQuery = q.Encode()

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, resp, err := dialer.DialContext(ctx, u.String(), http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("evi: dial chat socket: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &ChatSocket{
		conn:    conn,
		handler: h,
		logger:  logger,
		done:    make(chan struct{}),
	}

	if opts.Audio != nil {
		settings := SessionSettings{Type: TypeSessionSettings, Audio: opts.Audio}
		if err := s.writeJSON(settings); err != nil {
			conn.Close()
			return nil, fmt.Errorf("evi: send session settings: %w", err)
		}
	}

	logger.Debug("chat socket connected", "endpoint", u.Host)

	h.OnOpen()
	go s.readLoop()

	return s, nil
}

// SendAudio encodes one raw audio frame into its transport encoding and
// writes it to the channel.
func (s *ChatSocket) SendAudio(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	msg := AudioInput{
		Type: TypeAudioInput,
		Data: base64.StdEncoding.EncodeToString(data),
	}
	return s.writeJSON(msg)
}

// SendSessionSettings announces or updates the session configuration on
// the open channel.
func (s *ChatSocket) SendSessionSettings(settings SessionSettings) error {
	settings.Type = TypeSessionSettings
	return s.writeJSON(settings)
}

// Close tears the connection down. The read loop observes the closed
// connection and delivers the final OnClose; callers that need to wait
// for it select on Done.
func (s *ChatSocket) Close() error {
	var err error
	s.closed.Do(func() {
		// Best effort: tell the peer we are going away before
		// dropping the TCP connection.
		deadline := time.Now().Add(time.Second)
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// Done is closed once the read loop has exited and OnClose has been
// delivered.
func (s *ChatSocket) Done() <-chan struct{} {
	return s.done
}

// readLoop delivers inbound events one at a time until the connection
// ends. All Handler callbacks after OnOpen happen here, which is what
// makes delivery strictly sequential.
func (s *ChatSocket) readLoop() {
	defer close(s.done)
	defer s.handler.OnClose()
	defer s.Close()
	defer s.logger.Debug("chat socket closed")

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				s.handler.OnError(fmt.Errorf("chat socket read: %w", err))
			}
			return
		}

		event, err := DecodeEvent(data)
		if err != nil {
			// A malformed frame is not fatal to the stream;
			// report it and keep reading.
			s.handler.OnError(err)
			continue
		}
		s.handler.OnMessage(event)
	}
}

func (s *ChatSocket) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(v)
}

// isExpectedClose reports whether a read error is an ordinary end of
// connection rather than a transport failure worth surfacing.
func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
