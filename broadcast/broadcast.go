// broadcast/broadcast.go
package broadcast

import (
	"sync"

	"github.com/duckuru/spellin-bee/session"
)

// Broadcaster delivers events to room-scoped groups of connections.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToRoomExcept(roomID, exceptSessionID string, msgID uint16, data []byte) error
	SendToSession(sessionID string, msgID uint16, data []byte) error
	BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error
}

// GroupBroadcaster keeps logical room membership per session, the way a
// socket joins and leaves named rooms. Membership is transport-level
// bookkeeping only; game state lives in the shared store.
type GroupBroadcaster struct {
	sessionManager *session.Manager
	groups         map[string]map[string]struct{} // roomID -> set of sessionIDs
	mutex          sync.RWMutex
}

func NewGroupBroadcaster(sessionManager *session.Manager) *GroupBroadcaster {
	return &GroupBroadcaster{
		sessionManager: sessionManager,
		groups:         make(map[string]map[string]struct{}),
	}
}

func (b *GroupBroadcaster) JoinGroup(roomID, sessionID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.groups[roomID]; !exists {
		b.groups[roomID] = make(map[string]struct{})
	}
	b.groups[roomID][sessionID] = struct{}{}
}

func (b *GroupBroadcaster) LeaveGroup(roomID, sessionID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if members, exists := b.groups[roomID]; exists {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(b.groups, roomID)
		}
	}
}

// LeaveAll drops the session from every group and returns the room IDs it
// was a member of, so disconnect handling can run per-room cleanup.
func (b *GroupBroadcaster) LeaveAll(sessionID string) []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var roomIDs []string
	for roomID, members := range b.groups {
		if _, ok := members[sessionID]; ok {
			delete(members, sessionID)
			roomIDs = append(roomIDs, roomID)
			if len(members) == 0 {
				delete(b.groups, roomID)
			}
		}
	}
	return roomIDs
}

func (b *GroupBroadcaster) members(roomID string) []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	ids := make([]string, 0, len(b.groups[roomID]))
	for id := range b.groups[roomID] {
		ids = append(ids, id)
	}
	return ids
}

func (b *GroupBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	return b.BroadcastToRoomExcept(roomID, "", msgID, data)
}

func (b *GroupBroadcaster) BroadcastToRoomExcept(roomID, exceptSessionID string, msgID uint16, data []byte) error {
	for _, sessionID := range b.members(roomID) {
		if sessionID == exceptSessionID {
			continue
		}
		if s, exists := b.sessionManager.Get(sessionID); exists {
			// A dead connection is the reader goroutine's problem.
			_ = s.Send(msgID, data)
		}
	}
	return nil
}

func (b *GroupBroadcaster) SendToSession(sessionID string, msgID uint16, data []byte) error {
	s, exists := b.sessionManager.Get(sessionID)
	if !exists {
		return nil
	}
	return s.Send(msgID, data)
}

func (b *GroupBroadcaster) BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error {
	for _, userID := range userIDs {
		for _, s := range b.sessionManager.GetByUserID(userID) {
			_ = s.Send(msgID, data)
		}
	}
	return nil
}
