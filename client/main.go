package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Message IDs used by the debug client.
const (
	MsgTypeJoinRoom     = 101
	MsgTypeStartTurn    = 102
	MsgTypeGetRoomState = 103
	MsgTypeSubmitAnswer = 104
	MsgTypeLeaveRoom    = 106
	MsgTypeCreateLobby  = 201
	MsgTypeJoinLobby    = 202
	MsgTypeStartGame    = 207
	MsgTypeJoinQueue    = 301
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func sendJSON(c *websocket.Conn, msgID uint16, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return send(c, msgID, data)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	userID := "debug-user"
	username := "debug"
	if len(os.Args) > 1 {
		userID = os.Args[1]
		username = os.Args[1]
	}

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	log.Println("Commands: create | joinlobby <id> | start <id> | join <room> | turn <room> | state <room> | answer <room> <word> | leave <room> | queue")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "create":
				err = sendJSON(c, MsgTypeCreateLobby, map[string]interface{}{
					"hostId": userID, "username": username, "isPublic": false,
				})
			case "joinlobby":
				if len(fields) < 2 {
					continue
				}
				err = sendJSON(c, MsgTypeJoinLobby, map[string]string{
					"room_id": fields[1], "userId": userID, "username": username,
				})
			case "start":
				if len(fields) < 2 {
					continue
				}
				err = sendJSON(c, MsgTypeStartGame, map[string]string{"room_id": fields[1]})
			case "join":
				if len(fields) < 2 {
					continue
				}
				err = sendJSON(c, MsgTypeJoinRoom, map[string]string{
					"room_id": fields[1], "userId": userID, "username": username,
				})
			case "turn":
				if len(fields) < 2 {
					continue
				}
				err = sendJSON(c, MsgTypeStartTurn, map[string]string{"room_id": fields[1]})
			case "state":
				if len(fields) < 2 {
					continue
				}
				err = sendJSON(c, MsgTypeGetRoomState, map[string]string{"room_id": fields[1]})
			case "answer":
				if len(fields) < 3 {
					continue
				}
				err = sendJSON(c, MsgTypeSubmitAnswer, map[string]string{
					"room_id": fields[1], "answer": fields[2],
				})
			case "leave":
				if len(fields) < 2 {
					continue
				}
				err = sendJSON(c, MsgTypeLeaveRoom, map[string]string{"room_id": fields[1]})
			case "queue":
				err = sendJSON(c, MsgTypeJoinQueue, map[string]string{
					"userId": userID, "username": username,
				})
			default:
				log.Printf("Unknown command: %s", fields[0])
				continue
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", fields[0])
		}
	}
}
