package network

// Message IDs. 1xx: client actions on rooms, 2xx: lobby actions,
// 3xx: matchmaking, 4xx: server broadcasts, 5xx: error events.
const (
	MsgTypeHeartbeat = 1

	MsgTypeJoinRoom     = 101
	MsgTypeStartTurn    = 102
	MsgTypeGetRoomState = 103
	MsgTypeSubmitAnswer = 104
	MsgTypeTyping       = 105
	MsgTypeLeaveRoom    = 106

	MsgTypeCreateLobby    = 201
	MsgTypeJoinLobby      = 202
	MsgTypeLeaveLobby     = 203
	MsgTypeRejoinLobby    = 204
	MsgTypeUpdateSettings = 205
	MsgTypeKickPlayer     = 206
	MsgTypeStartGame      = 207

	MsgTypeJoinQueue  = 301
	MsgTypeLeaveQueue = 302

	MsgTypeRoomState      = 401
	MsgTypeTurnStart      = 402
	MsgTypeTurnTimeUpdate = 403
	MsgTypeTurnEnded      = 404
	MsgTypeScoreUpdate    = 405
	MsgTypeAnswerResult   = 406
	MsgTypePreTurn        = 407
	MsgTypeRoomFinished   = 408
	MsgTypeRoomUpdate     = 409
	MsgTypePlayerLeftRoom = 410
	MsgTypeYouLeftRoom    = 411
	MsgTypeLobbyUpdate    = 412
	MsgTypeGameStarting   = 413
	MsgTypeKicked         = 414
	MsgTypeQueueUpdate    = 415
	MsgTypeGameFound      = 416

	MsgTypeRoomError           = 501
	MsgTypeQueueError          = 502
	MsgTypeRoomFinishedAlready = 503
)
