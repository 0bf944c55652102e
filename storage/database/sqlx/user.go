package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/user"
)

const userTable = `"user"`

var (
	userColumns = []string{
		"id", "name", "username", "email", "is_active", "roles", "password_hash", "created_at", "updated_at", "last_login",
	}
	userOrdering = map[string]string{
		"name":       "name",
		"username":   "username",
		"email":      "email",
		"created_at": "created_at",
		"updated_at": "updated_at",
		"last_login": "last_login",
	}
	userConstraints = map[string]error{
		"user_username_key": user.ErrUsernameExists,
		"user_email_key":    user.ErrEmailExists,
	}
)

// userRow is the database representation of user.User: empty usernames and emails are stored as NULL.
type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

func (row userRow) values() []interface{} {
	return []interface{}{
		row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Roles, row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin,
	}
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	var or sq.Or
	if username != "" {
		or = append(or, sq.Eq{"username": username})
	}
	if email != "" {
		or = append(or, sq.Eq{"email": email})
	}
	if len(or) == 0 {
		return nil
	}

	where := sq.And{or}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		where = append(where, sq.NotEq{"id": ids})
	}

	var rows []userRow
	if err := selectRows(ctx, repo.db, &rows, psql.Select(userColumns...).From(userTable).Where(where)); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
		if email != "" && row.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)

	q := psql.Insert(userTable).Columns(userColumns...).Values(row.values()...)
	if _, err := execQuery(ctx, repo.db, q); err != nil {
		return user.User{}, errors.Wrap(constraintErr(err, userConstraints), "inserting user")
	}
	return row.toUser(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]user.User, int, error) {
	q := psql.Select().From(userTable)

	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		q = q.Where(search(filter.Search, "name", "username", "email"))
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		patterns := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			patterns = append(patterns, escapeLike(role)+"%")
		}
		q = q.Where("EXISTS (SELECT 1 FROM UNNEST(roles) AS user_role WHERE user_role LIKE ANY (?))", pq.Array(patterns))
	}
	if filter.IsActive != nil {
		q = q.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if !filter.CreatedFrom.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if !filter.CreatedTo.IsZero() {
		q = q.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}

	var rows []userRow
	count, err := queryPage(ctx, repo.db, &rows, q, userColumns, orderBy(ordering, userOrdering, "id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, count, nil
}

func (repo userRepository) getUser(ctx context.Context, where sq.Sqlizer) (user.User, error) {
	var row userRow
	if err := getRow(ctx, repo.db, &row, psql.Select(userColumns...).From(userTable).Where(where).Limit(1)); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, sq.Eq{"id": id})
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, sq.Eq{"username": username})
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if email == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, sq.Eq{"email": email})
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, sq.Or{sq.Eq{"username": username}, sq.Eq{"email": username}})
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !isUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	row := toUserRow(usr)

	q := psql.Update(userTable).
		SetMap(map[string]interface{}{
			"name":          row.Name,
			"username":      row.Username,
			"email":         row.Email,
			"is_active":     row.IsActive,
			"roles":         row.Roles,
			"password_hash": row.PasswordHash,
			"updated_at":    row.UpdatedAt,
			"last_login":    row.LastLogin,
		}).
		Where(sq.Eq{"id": row.ID})
	n, err := execQuery(ctx, repo.db, q)
	if err != nil {
		return user.User{}, errors.Wrap(constraintErr(err, userConstraints), "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.toUser(), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	if _, err := execQuery(ctx, repo.db, psql.Delete(userTable).Where(sq.Eq{"id": valid})); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
