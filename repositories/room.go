package repositories

import (
	"chat-guard/codec"
	"chat-guard/domain"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IRoomRepository interface {
	StoreRoom(room DiskRoom) error
	GetRooms() ([]DiskRoom, error)
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) RoomRepository {
	return RoomRepository{db: db}
}

type DiskRoom struct {
	ID        string    `cbor:"id"`
	Name      string    `cbor:"name"`
	CreatedAt time.Time `cbor:"created_at"`
}

func RoomKey(id domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%s", id))
}

func (r RoomRepository) StoreRoom(room DiskRoom) error {
	bytes, err := codec.Marshal(room)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(RoomKey(domain.RoomID(room.ID)), bytes)
	})
}

func (r RoomRepository) GetRooms() ([]DiskRoom, error) {
	var rooms []DiskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var room DiskRoom
				if err := codec.Unmarshal(value, &room); err != nil {
					return err
				}
				room.CreatedAt = room.CreatedAt.UTC()
				rooms = append(rooms, room)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}

// DecodeRoom is used by the inspection tools.
func DecodeRoom(value []byte) (DiskRoom, error) {
	var room DiskRoom
	if err := codec.Unmarshal(value, &room); err != nil {
		return DiskRoom{}, err
	}
	room.CreatedAt = room.CreatedAt.UTC()
	return room, nil
}
