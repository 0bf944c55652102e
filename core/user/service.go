package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, user User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		// It returns the requested page and the total count of matching users.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]User, int, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		UpdateUser(ctx context.Context, user User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	CheckUniquenessService interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
	}

	ServiceInterface interface {
		CheckUniquenessService
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[User], error)
		// QueryActiveByRoles returns active users having a role starting with any of roles.
		QueryActiveByRoles(ctx context.Context, roles ...string) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
		tokens  tokenGenerator
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) ServiceInterface {
	return newService(repo, mailSvc, conf, logger)
}

func newService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[User], error) {
	users, count, err := svc.repo.QueryUsers(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[User]{}, err
	}
	return core.NewPage(count, users), nil
}

func (svc *service) QueryActiveByRoles(ctx context.Context, roles ...string) ([]User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	isActive := true
	users, _, err := svc.repo.QueryUsers(ctx, QueryFilter{Roles: roles, IsActive: &isActive}, nil, core.Pagination{})
	return users, err
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

// Update expects uu to have been validated against the stored user.
func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("making password reset token: %v", err), err, usr)
		return
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{usr.Address()},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	}
	if err := msg.Render(svc.conf.Email.FrontendBaseURL); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering password reset email: %v", err), err, usr)
		return
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	errInvalidLink := core.NewValidationError(errors.New("invalid password reset link"))

	id, err := decodeUID(data.UID)
	if err != nil {
		return errInvalidLink
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return errInvalidLink
		}
		return err
	}
	if err := svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err)
	}
	if tag := checkPasswordPolicy(data.Password, usr.Name, usr.Username, usr.Email); tag != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: pwdPolicyTexts[tag]})
	}

	if err := usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
