package inmemdb

import (
	"cmp"
	"context"
	"strings"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/user"
)

var userComparers = comparers[user.User]{
	"name":       func(a, b user.User) int { return compareFold(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return cmp.Compare(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return cmp.Compare(a.Email, b.Email) },
	"created_at": func(a, b user.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b user.User) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	"last_login": func(a, b user.User) int { return a.LastLogin.Compare(b.LastLogin) },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.users {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUnique(usr); err != nil {
		return user.User{}, err
	}
	usr.ID = newID()
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

// checkUnique mirrors the unique constraints of the users table. The caller must hold the lock.
func (repo *userRepository) checkUnique(usr user.User) error {
	for _, other := range repo.db.users {
		if other.ID == usr.ID {
			continue
		}
		if usr.Username != "" && other.Username == usr.Username {
			return user.ErrUsernameExists
		}
		if usr.Email != "" && other.Email == usr.Email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func hasRolePrefix(usr user.User, prefixes []string) bool {
	for _, prefix := range prefixes {
		for _, role := range usr.Roles {
			if strings.HasPrefix(role, prefix) {
				return true
			}
		}
	}
	return false
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]user.User, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(usr user.User) bool {
		if filter.Search != "" && !containsFold(filter.Search, usr.Name, usr.Username, usr.Email) {
			return false
		}
		if len(filter.Roles) > 0 && !hasRolePrefix(usr, filter.Roles) {
			return false
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			return false
		}
		return inRange(usr.CreatedAt, filter.CreatedFrom, filter.CreatedTo)
	}
	users, count := query(repo.db.users, nil, keep, ordering, userComparers, func(u user.User) string { return u.ID }, page)
	return users, count, nil
}

func (repo *userRepository) findUser(match func(user.User) bool) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		if match(usr) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.findUser(func(usr user.User) bool { return usr.Username == username })
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	if email == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.findUser(func(usr user.User) bool { return usr.Email == email })
}

func (repo *userRepository) GetUserByUsernameOrEmail(_ context.Context, username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.findUser(func(usr user.User) bool { return usr.Username == username || usr.Email == username })
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUnique(usr); err != nil {
		return user.User{}, err
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.users, id)
	}
	return nil
}
