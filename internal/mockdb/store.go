package mockdb

import (
	"errors"
	"sync"

	"github.com/EmaRG1/user-manager/internal/model"
)

var (
	ErrNotFound       = errors.New("not_found")
	ErrDuplicateEmail = errors.New("duplicate_email")
)

// Store owns the in-memory collections. Build one per process (or per
// test) and hand it to the services; nothing here is package-level state.
type Store struct {
	mu        sync.Mutex
	users     table[model.User]
	studies   table[model.Study]
	addresses table[model.Address]
}

func New(seed Seed) *Store {
	s := &Store{
		users: table[model.User]{
			id:    func(u model.User) int { return u.ID },
			setID: func(u *model.User, id int) { u.ID = id },
		},
		studies: table[model.Study]{
			id:    func(s model.Study) int { return s.ID },
			setID: func(s *model.Study, id int) { s.ID = id },
		},
		addresses: table[model.Address]{
			id:    func(a model.Address) int { return a.ID },
			setID: func(a *model.Address, id int) { a.ID = id },
		},
	}
	s.users.rows = append([]model.User{}, seed.Users...)
	s.studies.rows = append([]model.Study{}, seed.Studies...)
	s.addresses.rows = append([]model.Address{}, seed.Addresses...)
	return s
}

func (s *Store) Users() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.all()
}

func (s *Store) UserByID(id int) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.get(id)
}

// UserByEmail matches the email exactly, case included.
func (s *Store) UserByEmail(email string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users.rows {
		if u.Email == email {
			return u, true
		}
	}
	return model.User{}, false
}

func (s *Store) InsertUser(u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(u.Email, 0) {
		return model.User{}, ErrDuplicateEmail
	}
	return s.users.insert(u), nil
}

// UpdateUser applies fn to a copy of the user. Email uniqueness is only
// checked when fn changed the email.
func (s *Store) UpdateUser(id int, fn func(*model.User)) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.update(id, func(u *model.User) error {
		before := u.Email
		fn(u)
		if u.Email != before && s.emailTaken(u.Email, id) {
			return ErrDuplicateEmail
		}
		return nil
	})
}

// DeleteUser removes the user along with the studies and addresses it owns.
func (s *Store) DeleteUser(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users.remove(id) {
		return ErrNotFound
	}
	s.studies.removeWhere(func(st model.Study) bool { return st.UserID == id })
	s.addresses.removeWhere(func(a model.Address) bool { return a.UserID == id })
	return nil
}

func (s *Store) emailTaken(email string, exceptID int) bool {
	for _, u := range s.users.rows {
		if u.ID != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func (s *Store) StudiesByUser(userID int) []model.Study {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studies.where(func(st model.Study) bool { return st.UserID == userID })
}

func (s *Store) StudyByID(id int) (model.Study, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studies.get(id)
}

func (s *Store) InsertStudy(st model.Study) model.Study {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studies.insert(st)
}

func (s *Store) UpdateStudy(id int, fn func(*model.Study)) (model.Study, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studies.update(id, func(st *model.Study) error {
		fn(st)
		return nil
	})
}

func (s *Store) DeleteStudy(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.studies.remove(id) {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AddressesByUser(userID int) []model.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addresses.where(func(a model.Address) bool { return a.UserID == userID })
}

func (s *Store) AddressByID(id int) (model.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addresses.get(id)
}

func (s *Store) InsertAddress(a model.Address) model.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addresses.insert(a)
}

func (s *Store) UpdateAddress(id int, fn func(*model.Address)) (model.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addresses.update(id, func(a *model.Address) error {
		fn(a)
		return nil
	})
}

func (s *Store) DeleteAddress(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.addresses.remove(id) {
		return ErrNotFound
	}
	return nil
}

type Counts struct {
	Users     int `json:"users"`
	Studies   int `json:"studies"`
	Addresses int `json:"addresses"`
}

func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{
		Users:     len(s.users.rows),
		Studies:   len(s.studies.rows),
		Addresses: len(s.addresses.rows),
	}
}
