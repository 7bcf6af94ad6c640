package rooms

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medisys/hms/internal/platform/httpx"
)

type mockRepository struct {
	mu     sync.Mutex
	rooms  map[int64]Room
	nextID int64

	listErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{rooms: make(map[int64]Room), nextID: 1}
}

func (m *mockRepository) List(ctx context.Context, filters ListFilters) ([]Room, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Room
	for _, room := range m.rooms {
		if filters.Kind != "" && room.Kind != filters.Kind {
			continue
		}
		if filters.Floor != nil && room.Floor != *filters.Floor {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(room.Name), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if filters.Window.PerPage > 0 {
		start := min(filters.Window.Offset(), len(out))
		end := min(start+filters.Window.PerPage, len(out))
		out = out[start:end]
	}
	return out, total, nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return Room{}, httpx.ErrNotFound
	}
	return room, nil
}

func (m *mockRepository) Create(ctx context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rooms {
		if existing.Code == room.Code {
			return Room{}, httpx.ErrDuplicate
		}
	}
	room.ID = m.nextID
	m.nextID++
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	m.rooms[room.ID] = room
	return room, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rooms[id]
	if !ok {
		return Room{}, httpx.ErrNotFound
	}
	room.ID = id
	room.CreatedAt = existing.CreatedAt
	room.UpdatedAt = time.Now()
	m.rooms[id] = room
	return room, nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.rooms, id)
	return nil
}

var _ Repository = (*mockRepository)(nil)
