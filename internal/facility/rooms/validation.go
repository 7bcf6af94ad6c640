package rooms

import (
	"fmt"
	"strings"

	"github.com/medisys/hms/internal/platform/httpx"
)

func normalize(room Room) Room {
	room.Code = strings.ToUpper(strings.TrimSpace(room.Code))
	room.Name = strings.TrimSpace(room.Name)
	room.Kind = strings.ToLower(strings.TrimSpace(room.Kind))
	if room.Kind == "" {
		room.Kind = KindWard
	}
	return room
}

func validate(room Room) error {
	if room.Code == "" {
		return fmt.Errorf("%w: room code is required", httpx.ErrValidation)
	}
	if room.Name == "" {
		return fmt.Errorf("%w: room name is required", httpx.ErrValidation)
	}
	if room.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be at least 1", httpx.ErrValidation)
	}
	switch room.Kind {
	case KindWard, KindICU, KindTheatre, KindClinic, KindIsolation:
	default:
		return fmt.Errorf("%w: unknown room kind %q", httpx.ErrValidation, room.Kind)
	}
	if room.Kind == KindIsolation && room.Capacity > 1 {
		return fmt.Errorf("%w: isolation rooms hold a single patient", httpx.ErrValidation)
	}
	return nil
}
