package shared

// Facility permissions.
const (
	PermRoomsRead  = "rooms.read"
	PermRoomsWrite = "rooms.write"
)

// FacilityScopes lists permissions guarding buildings, floors and rooms.
func FacilityScopes() []string {
	return []string{
		PermRoomsRead,
		PermRoomsWrite,
	}
}
