package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/user"
)

var errMissingIdentity = errors.New("one of --username or --email is required")

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		name, uname, email string
		roles              []string
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the one having the same username or email",
		Long: `Create a user, or update the one having the same username or email.

The password is prompted next. Without --role, the user is given every admin role.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" && email == "" {
				return errMissingIdentity
			}
			for _, role := range roles {
				if user.RolePriority(role) == 0 {
					return errors.Errorf("unknown role %q", role)
				}
			}
			pwd, err := cli.promptPassword(true /* confirm */)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, uname, email, pwd, roles)
			if err != nil {
				return err
			}
			cli.logger.Info("user saved", zapUser(usr)...)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&uname, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to grant, may be repeated (default: admin roles)")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, name, uname, email, pwd string, roles []string) (user.User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.findUser(ctx, uname, email)
	isNew := errors.Cause(err) == user.ErrNotFound
	if err != nil && !isNew {
		return user.User{}, err
	}
	if isNew {
		usr = user.User{Username: uname, Email: email, CreatedAt: time.Now().UTC()}
	}

	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if len(roles) == 0 {
		roles = user.AdminRoles
	}
	usr.Roles = append([]string(nil), roles...)
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if isNew {
		return cli.usrRepo.CreateUser(ctx, usr)
	}
	return cli.usrRepo.UpdateUser(ctx, usr)
}

func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	if uname != "" {
		usr, err := cli.usrRepo.GetUserByUsername(ctx, uname)
		if errors.Cause(err) != user.ErrNotFound {
			return usr, err
		}
	}
	if email != "" {
		return cli.usrRepo.GetUserByEmail(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}
