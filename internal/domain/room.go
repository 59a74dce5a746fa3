package domain

import "strings"

const MaxRoomIDLen = 64

type RoomID string

// ValidateRoomID trims id and checks its length.
func ValidateRoomID(id string) (RoomID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrRoomEmpty
	}
	if len(id) > MaxRoomIDLen {
		return "", ErrRoomTooLong
	}
	return RoomID(id), nil
}
