// lobby/events.go
package lobby

import "encoding/json"

type GameStartingPayload struct {
	RoomID string `json:"room_id"`
}

type KickedPayload struct {
	Message string `json:"message"`
}

func marshal(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}
