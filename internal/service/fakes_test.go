package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Tomlord1122/todo-app/internal/domain"
	"github.com/Tomlord1122/todo-app/internal/repository"
)

// memTodoRepository is an in-memory TodoRepository. InTx restores the
// previous state when fn fails.
type memTodoRepository struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]domain.Todo
	clock  time.Time
}

func newMemTodoRepository() *memTodoRepository {
	return &memTodoRepository{rows: map[uint]domain.Todo{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *memTodoRepository) Create(_ context.Context, todo *domain.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.clock = r.clock.Add(time.Second)
	todo.ID = r.nextID
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = r.clock
	}
	todo.UpdatedAt = todo.CreatedAt
	r.rows[todo.ID] = *todo
	return nil
}

func (r *memTodoRepository) FindByID(_ context.Context, id uint) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (r *memTodoRepository) List(_ context.Context, q domain.TodoQuery) ([]domain.Todo, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(q.Search))
	var matched []domain.Todo
	for _, t := range r.rows {
		if t.UserID != q.UserID {
			continue
		}
		if needle != "" {
			desc := ""
			if t.Description != nil {
				desc = *t.Description
			}
			if !strings.Contains(strings.ToLower(t.Title), needle) && !strings.Contains(strings.ToLower(desc), needle) {
				continue
			}
		}
		if q.Filter == domain.FilterFinished && !t.IsFinished {
			continue
		}
		if q.Filter == domain.FilterUnfinished && t.IsFinished {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := (q.Page - 1) * repository.PerPage
	if start >= len(matched) {
		return []domain.Todo{}, total, nil
	}
	end := start + repository.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *memTodoRepository) Stats(_ context.Context, userID uint) (domain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s domain.Stats
	for _, t := range r.rows {
		if t.UserID != userID {
			continue
		}
		s.Total++
		if t.IsFinished {
			s.Finished++
		}
	}
	s.Unfinished = s.Total - s.Finished
	return s, nil
}

func (r *memTodoRepository) Update(_ context.Context, todo *domain.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[todo.ID]; !ok {
		return domain.ErrNotFound
	}
	r.clock = r.clock.Add(time.Second)
	todo.UpdatedAt = r.clock
	r.rows[todo.ID] = *todo
	return nil
}

func (r *memTodoRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memTodoRepository) InTx(_ context.Context, fn func(repo repository.TodoRepository) error) error {
	r.mu.Lock()
	snapshot := make(map[uint]domain.Todo, len(r.rows))
	for k, v := range r.rows {
		snapshot[k] = v
	}
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.rows = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memTodoRepository) get(id uint) domain.Todo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *memTodoRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// memAssetStore keeps stored files in a map.
type memAssetStore struct {
	mu       sync.Mutex
	n        int
	files    map[string][]byte
	storeErr error
	deleted  []string
}

func newMemAssetStore() *memAssetStore {
	return &memAssetStore{files: map[string][]byte{}}
}

func (s *memAssetStore) Store(_ context.Context, r io.Reader, namespace, ext string) (string, error) {
	if s.storeErr != nil {
		return "", s.storeErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	key := fmt.Sprintf("%s/file-%d%s", namespace, s.n, ext)
	s.files[key] = data
	return key, nil
}

func (s *memAssetStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	if _, ok := s.files[key]; !ok {
		return domain.ErrAssetNotFound
	}
	delete(s.files, key)
	return nil
}

func (s *memAssetStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[key]
	return ok
}

func (s *memAssetStore) put(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = []byte("old")
}

type memUserRepository struct {
	nextID uint
	users  map[string]domain.User
	err    error
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{users: map[string]domain.User{}}
}

func (r *memUserRepository) Create(_ context.Context, user *domain.User) error {
	if r.err != nil {
		return r.err
	}
	if _, ok := r.users[user.Email]; ok {
		return domain.ErrEmailTaken
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.Email] = *user
	return nil
}

func (r *memUserRepository) FindByID(_ context.Context, id uint) (*domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

var errBoom = errors.New("boom")

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

func pngUpload(size int) CoverUpload {
	body := make([]byte, size)
	copy(body, pngHeader)
	return CoverUpload{Filename: "cover.png", Size: int64(size), Content: bytes.NewReader(body)}
}
