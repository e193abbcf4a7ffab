package domain

import (
	"time"
)

type Command interface {
	RoomID() RoomID
}

type SendMessageCommand struct {
	Room      RoomID
	Author    ParticipantID
	Content   string
	CreatedAt time.Time
}

func (c SendMessageCommand) RoomID() RoomID {
	return c.Room
}

// HistoryCommand pages through a room log on behalf of Reader, who must be
// a member of the room.
type HistoryCommand struct {
	Room   RoomID
	Reader ParticipantID
	After  Sequence
	Limit  int
}

func (c HistoryCommand) RoomID() RoomID {
	return c.Room
}
