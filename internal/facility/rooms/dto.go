package rooms

// RoomForm is the JSON body accepted on create and update.
type RoomForm struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=128"`
	Floor    int    `json:"floor" validate:"gte=-5,lte=200"`
	Capacity int    `json:"capacity" validate:"gte=1,lte=64"`
	Kind     string `json:"kind" validate:"omitempty,oneof=ward icu theatre clinic isolation"`
}

func (f RoomForm) toRoom() Room {
	return Room{
		Code:     f.Code,
		Name:     f.Name,
		Floor:    f.Floor,
		Capacity: f.Capacity,
		Kind:     f.Kind,
	}
}
