// network/connection.go
package network

import (
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Wire framing: every websocket binary frame carries one packet of
// 2 bytes message ID, 2 bytes payload length, then the JSON payload.
const packetHeaderSize = 4

var (
	ErrPacketTooShort  = errors.New("frame shorter than the packet header")
	ErrPacketTruncated = errors.New("payload shorter than its declared length")
)

type Packet struct {
	MsgID  uint16
	Data   []byte
	Length uint16
}

type Connection interface {
	Send(msgID uint16, data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadPacket() (*Packet, error)
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(msgID uint16, data []byte) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	packet := make([]byte, packetHeaderSize+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[packetHeaderSize:], data)

	return c.conn.WriteMessage(websocket.BinaryMessage, packet)
}

func (c *WSConnection) ReadPacket() (*Packet, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return decodePacket(data)
}

// decodePacket splits a raw frame into a Packet. Trailing bytes beyond
// the declared length are dropped.
func decodePacket(data []byte) (*Packet, error) {
	if len(data) < packetHeaderSize {
		return nil, ErrPacketTooShort
	}

	msgID := binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint16(data[2:4])

	if len(data) < packetHeaderSize+int(length) {
		return nil, ErrPacketTruncated
	}

	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   data[packetHeaderSize : packetHeaderSize+length],
	}, nil
}

func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
