package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"diary-backend/domain/core/entities"
	"diary-backend/domain/core/valueobjects"
	"diary-backend/domain/events"
	pkgerrors "diary-backend/pkg/errors"
)

// memStore is an in-memory stand-in for every repository port
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	entries  map[int64]*entities.Entry
	records  map[int64]*entities.AnalysisRecord
	scores   map[int64]map[string]valueobjects.Score
	sessions map[int64]entities.SessionHandle
	users    map[int64]*entities.User

	// failReads makes every read return a store error
	failReads bool
}

func newMemStore() *memStore {
	return &memStore{
		entries:  make(map[int64]*entities.Entry),
		records:  make(map[int64]*entities.AnalysisRecord),
		scores:   make(map[int64]map[string]valueobjects.Score),
		sessions: make(map[int64]entities.SessionHandle),
		users:    make(map[int64]*entities.User),
	}
}

var errStoreDown = errors.New("database is locked")

func (s *memStore) readErr(op string) error {
	if s.failReads {
		return pkgerrors.NewStoreError(op, errStoreDown)
	}
	return nil
}

func (s *memStore) addUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &entities.User{ID: id, Nickname: "u", Email: "u@example.com"}
}

func (s *memStore) FindByDate(ctx context.Context, userID int64, date valueobjects.DiaryDate) (*entities.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr("find entry"); err != nil {
		return nil, err
	}
	for _, e := range s.entries {
		if e.UserID == userID && e.Date.Equals(date) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, pkgerrors.NewEntryNotFoundError()
}

func (s *memStore) FindMostRecentBefore(ctx context.Context, userID int64, date valueobjects.DiaryDate) (*entities.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr("find entry"); err != nil {
		return nil, err
	}
	var best *entities.Entry
	for _, e := range s.entries {
		if e.UserID == userID && e.Date.Before(date) && (best == nil || e.Date.After(best.Date)) {
			best = e
		}
	}
	if best == nil {
		return nil, pkgerrors.NewEntryNotFoundError()
	}
	cp := *best
	return &cp, nil
}

func (s *memStore) FindByID(ctx context.Context, userID, entryID int64) (*entities.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.UserID != userID {
		return nil, pkgerrors.NewEntryNotFoundError()
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) ExistsForDate(ctx context.Context, userID int64, date valueobjects.DiaryDate) (bool, error) {
	_, err := s.FindByDate(ctx, userID, date)
	if pkgerrors.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *memStore) InsertIfAbsent(ctx context.Context, entry *entities.Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.UserID == entry.UserID && e.Date.Equals(entry.Date) {
			return false, nil
		}
	}
	s.nextID++
	entry.ID = s.nextID
	cp := *entry
	s.entries[entry.ID] = &cp
	return true, nil
}

func (s *memStore) UpdateText(ctx context.Context, userID, entryID int64, text string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.UserID != userID {
		return pkgerrors.NewEntryNotFoundError()
	}
	e.Text = text
	e.UpdatedAt = updatedAt
	return nil
}

func (s *memStore) Delete(ctx context.Context, userID, entryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.UserID != userID {
		return pkgerrors.NewEntryNotFoundError()
	}
	delete(s.entries, entryID)
	delete(s.records, entryID)
	delete(s.scores[userID], e.Date.String())
	return nil
}

func (s *memStore) ListDatesInRange(ctx context.Context, userID int64, from, until valueobjects.DiaryDate) ([]valueobjects.DiaryDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dates []valueobjects.DiaryDate
	for _, e := range s.entries {
		if e.UserID == userID && !e.Date.Before(from) && e.Date.Before(until) {
			dates = append(dates, e.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *memStore) ReadRecord(ctx context.Context, userID, entryID int64) (*entities.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr("read record"); err != nil {
		return nil, err
	}
	r, ok := s.records[entryID]
	if !ok {
		return nil, nil
	}
	cp := *r
	if e, ok := s.entries[entryID]; ok {
		cp.Score = s.scores[userID][e.Date.String()]
	}
	return &cp, nil
}

func (s *memStore) UpsertRecord(ctx context.Context, userID int64, record *entities.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[record.EntryID]; !ok || e.UserID != userID {
		return pkgerrors.NewEntryNotFoundError()
	}
	cp := *record
	s.records[record.EntryID] = &cp
	return nil
}

func (s *memStore) UpsertScore(ctx context.Context, userID int64, date valueobjects.DiaryDate, score valueobjects.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scores[userID] == nil {
		s.scores[userID] = make(map[string]valueobjects.Score)
	}
	s.scores[userID][date.String()] = score
	return nil
}

func (s *memStore) ReadWeekScores(ctx context.Context, userID int64, start, end valueobjects.DiaryDate) ([]entities.DailyScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []entities.DailyScore
	for key, score := range s.scores[userID] {
		d := valueobjects.MustParseDiaryDate(key)
		if !d.Before(start) && !d.After(end) {
			rows = append(rows, entities.DailyScore{Date: d, Score: score})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

func (s *memStore) ClearRecord(ctx context.Context, userID, entryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[entryID]; ok && e.UserID == userID {
		delete(s.records, entryID)
		delete(s.scores[userID], e.Date.String())
	}
	return nil
}

func (s *memStore) ReadSession(ctx context.Context, userID int64) (entities.SessionHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return entities.SessionHandle{}, pkgerrors.NewUserNotFoundError()
	}
	return s.sessions[userID], nil
}

func (s *memStore) WriteSession(ctx context.Context, userID int64, handle entities.SessionHandle) (entities.SessionHandle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current := s.sessions[userID]; current.IsComplete() {
		return current, false, nil
	}
	s.sessions[userID] = handle
	return handle, true, nil
}

func (s *memStore) Create(ctx context.Context, user *entities.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Nickname == user.Nickname || u.Email == user.Email {
			return pkgerrors.NewConflictError("nickname or email already registered")
		}
	}
	s.nextID++
	user.ID = s.nextID
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memStore) findUser(userID int64) (*entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, pkgerrors.NewUserNotFoundError()
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) deleteUser(userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return 0, pkgerrors.NewUserNotFoundError()
	}
	var removed int64
	for id, e := range s.entries {
		if e.UserID == userID {
			delete(s.entries, id)
			delete(s.records, id)
			removed++
		}
	}
	delete(s.scores, userID)
	delete(s.sessions, userID)
	delete(s.users, userID)
	return removed, nil
}

// memUsers adapts memStore to UserRepository, whose FindByID and Delete
// collide with the entry methods of the same name
type memUsers struct{ *memStore }

func (u memUsers) FindByID(ctx context.Context, userID int64) (*entities.User, error) {
	return u.findUser(userID)
}

func (u memUsers) Delete(ctx context.Context, userID int64) (int64, error) {
	return u.deleteUser(userID)
}

// countingProvider records how often each provider operation ran
type countingProvider struct {
	sessionCalls int32
	analyzeCalls int32

	sessionErr error
	analyzeErr error
	score      valueobjects.Score
	// sessionDelay widens the race window in concurrency tests
	sessionDelay time.Duration
}

func (p *countingProvider) CreateSession(ctx context.Context, userID int64) (entities.SessionHandle, error) {
	n := atomic.AddInt32(&p.sessionCalls, 1)
	if p.sessionDelay > 0 {
		time.Sleep(p.sessionDelay)
	}
	if p.sessionErr != nil {
		return entities.SessionHandle{}, p.sessionErr
	}
	suffix := string(rune('0' + n))
	return entities.SessionHandle{AssistantID: "asst_" + suffix, ThreadID: "thread_" + suffix}, nil
}

func (p *countingProvider) Analyze(ctx context.Context, session entities.SessionHandle, text string) (*entities.AnalysisRecord, error) {
	atomic.AddInt32(&p.analyzeCalls, 1)
	if p.analyzeErr != nil {
		return nil, p.analyzeErr
	}
	return &entities.AnalysisRecord{
		Summary:   "summary of " + text,
		Sentiment: "calm",
		Advice:    "keep writing",
		Score:     p.score,
	}, nil
}

func (p *countingProvider) sessions() int { return int(atomic.LoadInt32(&p.sessionCalls)) }
func (p *countingProvider) analyses() int { return int(atomic.LoadInt32(&p.analyzeCalls)) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, e := range batch {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetEventType())
	}
	return out
}
