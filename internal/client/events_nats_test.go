package client

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adwatch/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// natsStub speaks just enough of the NATS text protocol for a publisher:
// INFO on accept, PONG for every PING, and a record of each PUB.
type natsStub struct {
	ln   net.Listener
	mu   sync.Mutex
	pubs map[string][]byte
}

func newNATSStub(t *testing.T) *natsStub {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &natsStub{ln: ln, pubs: map[string][]byte{}}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *natsStub) URL() string { return "nats://" + s.ln.Addr().String() }

func (s *natsStub) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *natsStub) handle(conn net.Conn) {
	defer conn.Close()
	_, _ = conn.Write([]byte(`INFO {"server_id":"stub","version":"2.10.0","proto":1,"max_payload":1048576}` + "\r\n"))

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "PING"):
			_, _ = conn.Write([]byte("PONG\r\n"))
		case strings.HasPrefix(line, "PUB "):
			fields := strings.Fields(line)
			size, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return
			}
			payload := make([]byte, size+2)
			if _, err := io.ReadFull(r, payload); err != nil {
				return
			}
			s.mu.Lock()
			s.pubs[fields[1]] = payload[:size]
			s.mu.Unlock()
		}
	}
}

func (s *natsStub) published(subject string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.pubs[subject]
	return b, ok
}

func TestNATSPublisher_CloseDeliversBufferedEvents(t *testing.T) {
	stub := newNATSStub(t)
	p, err := NewNATSPublisher(stub.URL(), "adwatch")
	require.NoError(t, err)

	ev := model.AlertEvent{
		Type:       "resolved",
		Alert:      model.Alert{ID: "a-1", CampaignID: "c-1", MetricName: model.MetricCTR, Status: model.AlertStatusResolved},
		OccurredAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishAlertEvent(context.Background(), ev))
	p.Close()

	// Close returns only after the server acknowledged everything sent before it
	data, ok := stub.published("adwatch.alert.resolved")
	require.True(t, ok, "event published before Close was not delivered")

	var got model.AlertEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "a-1", got.Alert.ID)
	assert.Equal(t, model.AlertStatusResolved, got.Alert.Status)
}
