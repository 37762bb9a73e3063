// Package memory implements every repository in process memory.
// It backs STORAGE=memory and the service tests; data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"broker-calls/database"
	models "broker-calls/database/models_pkg"

	"github.com/lib/pq"
)

// Store bundles the in-memory repositories so they share one user table
type Store struct {
	Users         *Users
	Calls         *Calls
	Notifications *Notifications
	Tokens        *Tokens
}

// New creates an empty in-memory store
func New() *Store {
	users := &Users{byID: make(map[int64]*models.User)}
	return &Store{
		Users:         users,
		Calls:         &Calls{users: users, byID: make(map[int64]*models.Call)},
		Notifications: &Notifications{byID: make(map[int64]*models.Notification)},
		Tokens:        &Tokens{entries: make(map[string]time.Time)},
	}
}

// clock returns the timestamp for created/updated columns
var clock = time.Now

// Users is the in-memory user table
type Users struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.User
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Watchlist = append(pq.StringArray{}, u.Watchlist...)
	return &c
}

// Create inserts a new user. A duplicate email yields a ConflictError.
func (s *Users) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.byID {
		if u.Email == user.Email {
			return database.NewConflictError("user", "email")
		}
	}

	s.nextID++
	now := clock()
	user.ID = s.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Watchlist == nil {
		user.Watchlist = pq.StringArray{}
	}
	s.byID[user.ID] = cloneUser(user)
	return nil
}

// FindByEmail looks a user up by normalised email
func (s *Users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, database.NewNotFoundError("user")
}

// FindByID retrieves a user by id
func (s *Users) FindByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, database.NewNotFoundErrorWithID("user", id)
	}
	return cloneUser(u), nil
}

// GetWatchlist returns the user's watchlist in stored order
func (s *Users) GetWatchlist(ctx context.Context, userID int64) ([]string, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return []string(u.Watchlist), nil
}

// SetWatchlist replaces the user's watchlist wholesale
func (s *Users) SetWatchlist(_ context.Context, userID int64, list []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return database.NewNotFoundErrorWithID("user", userID)
	}
	u.Watchlist = append(pq.StringArray{}, list...)
	u.UpdatedAt = clock()
	return nil
}

// Calls is the in-memory call table
type Calls struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.Call
	users  *Users
}

func cloneCall(c *models.Call) *models.Call {
	out := *c
	out.Creator = nil
	out.Tags = append(pq.StringArray{}, c.Tags...)
	out.PriceHistory = append(out.PriceHistory[:0:0], c.PriceHistory...)
	out.OutcomeHistory = append(out.OutcomeHistory[:0:0], c.OutcomeHistory...)
	out.News = append(out.News[:0:0], c.News...)
	out.Comments = append(out.Comments[:0:0], c.Comments...)
	out.Attachments = append(out.Attachments[:0:0], c.Attachments...)
	return &out
}

// joinCreator attaches the creator's public fields the way the SQL preload does
func (s *Calls) joinCreator(c *models.Call) {
	if s.users == nil {
		return
	}
	s.users.mu.RLock()
	defer s.users.mu.RUnlock()
	if u, ok := s.users.byID[c.CreatorID]; ok {
		c.Creator = &models.User{ID: u.ID, Name: u.Name, Email: u.Email}
	}
}

// Create persists a new call
func (s *Calls) Create(_ context.Context, call *models.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := clock()
	call.ID = s.nextID
	call.CreatedAt = now
	call.UpdatedAt = now
	s.byID[call.ID] = cloneCall(call)
	return nil
}

// FindByID retrieves a call by id
func (s *Calls) FindByID(_ context.Context, id int64) (*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, database.NewNotFoundErrorWithID("call", id)
	}
	return cloneCall(c), nil
}

// UpdateStatus sets the status of a single call and returns the updated row
func (s *Calls) UpdateStatus(_ context.Context, id int64, status string) (*models.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, database.NewNotFoundErrorWithID("call", id)
	}
	c.Status = status
	c.UpdatedAt = clock()
	return cloneCall(c), nil
}

// Save overwrites an existing call
func (s *Calls) Save(_ context.Context, call *models.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[call.ID]; !ok {
		return database.NewNotFoundErrorWithID("call", call.ID)
	}
	call.UpdatedAt = clock()
	s.byID[call.ID] = cloneCall(call)
	return nil
}

// list collects matching calls ordered by creation time (newest first when desc)
func (s *Calls) list(match func(*models.Call) bool, desc, join bool) []models.Call {
	s.mu.RLock()
	out := make([]models.Call, 0)
	for _, c := range s.byID {
		if match(c) {
			out = append(out, *cloneCall(c))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if desc {
				return out[i].ID > out[j].ID
			}
			return out[i].ID < out[j].ID
		}
		if desc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if join {
		for i := range out {
			s.joinCreator(&out[i])
		}
	}
	return out
}

// ListByStatus returns calls in the given status with the creator joined
func (s *Calls) ListByStatus(_ context.Context, status string) ([]models.Call, error) {
	return s.list(func(c *models.Call) bool { return c.Status == status }, false, true), nil
}

// ListExcludingStatus returns every call not in the given status, optionally for one broker
func (s *Calls) ListExcludingStatus(_ context.Context, status, broker string) ([]models.Call, error) {
	return s.list(func(c *models.Call) bool {
		return c.Status != status && (broker == "" || c.Broker == broker)
	}, true, true), nil
}

// ListByCreator returns the user's calls, newest first
func (s *Calls) ListByCreator(_ context.Context, creatorID int64) ([]models.Call, error) {
	return s.list(func(c *models.Call) bool { return c.CreatorID == creatorID }, true, false), nil
}

// ListByBroker returns every call attributed to a broker
func (s *Calls) ListByBroker(_ context.Context, broker string) ([]models.Call, error) {
	return s.list(func(c *models.Call) bool { return c.Broker == broker }, false, false), nil
}

// Notifications is the in-memory notification table
type Notifications struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.Notification
}

// Create persists a notification
func (s *Notifications) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	n.ID = s.nextID
	n.CreatedAt = clock()
	c := *n
	s.byID[n.ID] = &c
	return nil
}

// ListByUser returns the user's notifications, newest first
func (s *Notifications) ListByUser(_ context.Context, userID int64) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Notification, 0)
	for _, n := range s.byID {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkRead flags a notification as read. Only the owner can mark it.
func (s *Notifications) MarkRead(_ context.Context, userID, id int64) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok || n.UserID != userID {
		return nil, database.NewNotFoundErrorWithID("notification", id)
	}
	n.Read = true
	c := *n
	return &c, nil
}

// Tokens is the in-memory revocation list
type Tokens struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// Revoke records a token digest until expiresAt
func (s *Tokens) Revoke(_ context.Context, digest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[digest]; !ok {
		s.entries[digest] = expiresAt
	}
	return nil
}

// IsRevoked reports whether the digest is on the list and not yet expired
func (s *Tokens) IsRevoked(_ context.Context, digest string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[digest]
	return ok && exp.After(now), nil
}

// PurgeExpired deletes entries whose expiry has passed
func (s *Tokens) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for digest, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, digest)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries still held
func (s *Tokens) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
