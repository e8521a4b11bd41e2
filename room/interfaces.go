// room/interfaces.go
package room

import (
	"context"
	"time"

	"github.com/duckuru/spellin-bee/models"
	"github.com/duckuru/spellin-bee/words"
)

// Broadcaster is the transport-side primitive the orchestrator emits
// through. Defined here to break the import cycle with the gateway.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToRoomExcept(roomID, exceptSessionID string, msgID uint16, data []byte) error
	SendToSession(sessionID string, msgID uint16, data []byte) error
}

// WordSource hands out the next dictated word for a difficulty.
type WordSource interface {
	Pick(ctx context.Context, difficulty string) (words.Word, error)
}

// Recorder persists the terminal result of a match: history rows and
// rating updates. Implemented by the rating service.
type Recorder interface {
	RecordMatch(room *models.Room, scores map[string]int) error
}

// Scheduler arms and cancels the room timers. Implemented by
// timer.Manager; tests substitute a manual fake.
type Scheduler interface {
	After(delay time.Duration, callback func()) int64
	Every(interval time.Duration, callback func()) int64
	Cancel(id int64)
}

// Metrics is the optional instrumentation sink. A nil Metrics disables
// instrumentation without conditional wiring at every call site.
type Metrics interface {
	SetActiveRooms(count int)
	IncAnswer(correct bool)
}
