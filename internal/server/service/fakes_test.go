package service

import (
	"context"
	"fmt"
	"io"
	"sort"

	"scriptshare/internal/server/database"
	"scriptshare/internal/server/storage"
)

// --- In-memory fakes for the persistence interfaces ---

type fakeScriptStore struct {
	scripts     map[string]*database.Script
	failDelete  map[string]error // injected per-id delete failures
	lastFilter  database.ScriptFilter
	incremented []string // uploader ids passed to Create
}

func newFakeScriptStore() *fakeScriptStore {
	return &fakeScriptStore{
		scripts:    make(map[string]*database.Script),
		failDelete: make(map[string]error),
	}
}

func (f *fakeScriptStore) Create(_ context.Context, s *database.Script, uploaderID string) error {
	cp := *s
	f.scripts[s.ID] = &cp
	if uploaderID != "" {
		f.incremented = append(f.incremented, uploaderID)
	}
	return nil
}

func (f *fakeScriptStore) GetByID(_ context.Context, id string) (*database.Script, error) {
	s, ok := f.scripts[id]
	if !ok {
		return nil, database.ErrScriptNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeScriptStore) List(_ context.Context, filter database.ScriptFilter) ([]*database.Script, error) {
	f.lastFilter = filter
	var out []*database.Script
	for _, s := range f.scripts {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeScriptStore) ListSeries(_ context.Context, baseID string) ([]*database.Script, error) {
	var out []*database.Script
	for _, s := range f.scripts {
		if s.BaseScriptID == baseID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeScriptStore) Update(_ context.Context, id string, upd database.ScriptUpdate) (*database.Script, error) {
	s, ok := f.scripts[id]
	if !ok {
		return nil, database.ErrScriptNotFound
	}
	if upd.Status != nil {
		s.Status = *upd.Status
	}
	if upd.Likes != nil {
		s.Likes = *upd.Likes
	}
	if upd.Downloads != nil {
		s.Downloads = *upd.Downloads
	}
	cp := *s
	return &cp, nil
}

func (f *fakeScriptStore) IncrementDownloads(_ context.Context, id string) error {
	s, ok := f.scripts[id]
	if !ok {
		return database.ErrScriptNotFound
	}
	s.Downloads++
	return nil
}

func (f *fakeScriptStore) Delete(_ context.Context, id string) error {
	if err := f.failDelete[id]; err != nil {
		return err
	}
	if _, ok := f.scripts[id]; !ok {
		return database.ErrScriptNotFound
	}
	delete(f.scripts, id)
	return nil
}

func (f *fakeScriptStore) CountByUploader(_ context.Context, uploaderID string) (int, error) {
	n := 0
	for _, s := range f.scripts {
		if s.UploaderID == uploaderID {
			n++
		}
	}
	return n, nil
}

func (f *fakeScriptStore) CountUploadedOn(_ context.Context, uploaderID, date string) (int, error) {
	n := 0
	for _, s := range f.scripts {
		if s.UploaderID == uploaderID && s.UploadDate == date {
			n++
		}
	}
	return n, nil
}

func (f *fakeScriptStore) GetStats(_ context.Context) (*database.Stats, error) {
	return &database.Stats{TotalScripts: int64(len(f.scripts))}, nil
}

type fakeUserStore struct {
	users map[string]*database.User
}

func newFakeUserStore(users ...*database.User) *fakeUserStore {
	f := &fakeUserStore{users: make(map[string]*database.User)}
	for _, u := range users {
		cp := *u
		f.users[u.ID] = &cp
	}
	return f
}

func (f *fakeUserStore) Create(_ context.Context, u *database.User) error {
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*database.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*database.User, error) {
	var match *database.User
	for _, u := range f.users {
		if u.Email == email && (match == nil || u.ID < match.ID) {
			match = u
		}
	}
	if match == nil {
		return nil, database.ErrUserNotFound
	}
	cp := *match
	return &cp, nil
}

func (f *fakeUserStore) List(_ context.Context) ([]*database.User, error) {
	var out []*database.User
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUserStore) Update(_ context.Context, u *database.User) error {
	if _, ok := f.users[u.ID]; !ok {
		return database.ErrUserNotFound
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return database.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

type fakeConfigStore struct {
	cfg      *database.SystemConfig
	replaced int
}

func newFakeConfigStore(cfg *database.SystemConfig) *fakeConfigStore {
	return &fakeConfigStore{cfg: cfg}
}

func (f *fakeConfigStore) Get(_ context.Context) *database.SystemConfig {
	cp := *f.cfg
	cp.AvailableTags = append([]string(nil), f.cfg.AvailableTags...)
	return &cp
}

func (f *fakeConfigStore) Replace(_ context.Context, cfg *database.SystemConfig) error {
	cp := *cfg
	cp.AvailableTags = append([]string(nil), cfg.AvailableTags...)
	f.cfg = &cp
	f.replaced++
	return nil
}

type fakeAssetStore struct {
	nextID int
	files  map[string][]byte // keyed "<kind>/<filename>"
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{files: make(map[string][]byte)}
}

func (f *fakeAssetStore) key(kind storage.Kind, name string) string {
	return string(kind) + "/" + name
}

func (f *fakeAssetStore) Save(kind storage.Kind, ext string, data io.Reader) (string, int64, error) {
	f.nextID++
	name := fmt.Sprintf("asset-%d%s", f.nextID, ext)
	buf, err := io.ReadAll(data)
	if err != nil {
		return "", 0, err
	}
	f.files[f.key(kind, name)] = buf
	return name, int64(len(buf)), nil
}

func (f *fakeAssetStore) Path(kind storage.Kind, filename string) (string, error) {
	if _, ok := f.files[f.key(kind, filename)]; !ok {
		return "", fmt.Errorf("asset %s not found", filename)
	}
	return "/fake/" + f.key(kind, filename), nil
}

func (f *fakeAssetStore) Delete(kind storage.Kind, filename string) error {
	delete(f.files, f.key(kind, filename))
	return nil
}

func (f *fakeAssetStore) EnsureDirs() error { return nil }
