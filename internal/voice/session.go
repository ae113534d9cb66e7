package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Session is one participant's attachment to a voice channel.
type Session interface {
	// SetMuted force-sets the transmit state. Best-effort: callers retry,
	// never roll back game state on failure.
	SetMuted(ctx context.Context, muted bool) error
	// Leave is idempotent; safe on an already-disconnected session.
	Leave() error
}

// ChannelClient joins participants to channels on the voice transport.
type ChannelClient interface {
	JoinChannel(ctx context.Context, channelID, participantID string) (Session, error)
}

// signalMessage is the wire envelope spoken to the signaling server.
type signalMessage struct {
	Op            string `json:"op"` // "join", "mute", "leave"
	ChannelID     string `json:"channelId"`
	ParticipantID string `json:"participantId"`
	Muted         bool   `json:"muted,omitempty"`
}

const signalWriteWait = 5 * time.Second

// wsChannelClient speaks a websocket signaling protocol to the real-time
// audio server. One connection per (channel, participant) session.
type wsChannelClient struct {
	url    string
	dialer *websocket.Dialer
}

// NewChannelClient returns a ChannelClient for the given ws:// or wss://
// signaling endpoint.
func NewChannelClient(signalURL string) ChannelClient {
	return &wsChannelClient{
		url: signalURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (c *wsChannelClient) JoinChannel(ctx context.Context, channelID, participantID string) (Session, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("voice dial: %w", err)
	}

	s := &wsSession{
		conn:          conn,
		channelID:     channelID,
		participantID: participantID,
	}
	if err := s.write(signalMessage{Op: "join", ChannelID: channelID, ParticipantID: participantID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("voice join: %w", err)
	}
	// Drain server frames so pings and acks don't back up the connection.
	go s.readLoop()
	return s, nil
}

type wsSession struct {
	mu            sync.Mutex
	conn          *websocket.Conn
	channelID     string
	participantID string
	closed        bool
}

func (s *wsSession) write(msg signalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(signalWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) SetMuted(ctx context.Context, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("voice session closed")
	}
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	} else {
		s.conn.SetWriteDeadline(time.Now().Add(signalWriteWait))
	}
	data, err := json.Marshal(signalMessage{
		Op:            "mute",
		ChannelID:     s.channelID,
		ParticipantID: s.participantID,
		Muted:         muted,
	})
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) Leave() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.write(signalMessage{Op: "leave", ChannelID: s.channelID, ParticipantID: s.participantID})
	return s.conn.Close()
}

func (s *wsSession) readLoop() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
