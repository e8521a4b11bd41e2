package session

import (
	"net"
	"testing"
	"time"

	"github.com/duckuru/spellin-bee/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	sent []uint16
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestSession_Identify(t *testing.T) {
	sess := NewSession("s1", &MockConnection{})

	sess.Identify("u1", "alice")
	if sess.GetUserID() != "u1" || sess.GetUsername() != "alice" {
		t.Errorf("Expected identity u1/alice, got %s/%s", sess.GetUserID(), sess.GetUsername())
	}

	// Empty fields never erase an existing identity.
	sess.Identify("", "")
	if sess.GetUserID() != "u1" {
		t.Error("Expected an empty identify call to keep the user id")
	}
}

func TestSession_SendForwardsToConnection(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s1", conn)

	if err := sess.Send(42, []byte("x")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(conn.sent) != 1 || conn.sent[0] != 42 {
		t.Errorf("Expected message 42 to reach the connection, got %v", conn.sent)
	}
}

func TestManager_AddGetRemove(t *testing.T) {
	m := NewManager()
	sess := NewSession("s1", &MockConnection{})

	m.Add(sess)
	if m.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", m.Count())
	}

	got, exists := m.Get("s1")
	if !exists || got != sess {
		t.Error("Expected Get to return the added session")
	}

	m.Remove("s1")
	if _, exists := m.Get("s1"); exists {
		t.Error("Expected the session to be gone after Remove")
	}
}

func TestManager_GetByUserID(t *testing.T) {
	m := NewManager()

	s1 := NewSession("s1", &MockConnection{})
	s1.Identify("u1", "alice")
	s2 := NewSession("s2", &MockConnection{})
	s2.Identify("u1", "alice")
	s3 := NewSession("s3", &MockConnection{})
	s3.Identify("u2", "bob")

	m.Add(s1)
	m.Add(s2)
	m.Add(s3)

	if got := len(m.GetByUserID("u1")); got != 2 {
		t.Errorf("Expected 2 sessions for u1, got %d", got)
	}
	if got := len(m.GetByUserID("u9")); got != 0 {
		t.Errorf("Expected no sessions for an unknown user, got %d", got)
	}
}
