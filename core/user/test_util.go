package user

import (
	"context"

	"github.com/unistock/stockroom/core"
)

type serviceMock struct {
	*service
}

// NewServiceMock returns a service sending password reset emails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) ServiceInterface {
	return &serviceMock{service: newService(repo, mailSvc, conf, logger)}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

// MakeResetToken makes a password reset token the way the service does.
func MakeResetToken(conf *core.Config, usr User) (string, error) {
	return newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta).makeToken(usr)
}
