package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/unistock/stockroom/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resetpassword USERNAME|EMAIL",
		Short: "Reset a user's password; the new password is prompted next",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.promptPassword(true /* confirm */)
			if err != nil {
				return err
			}
			usr, err := cli.resetPassword(cmd.Context(), args[0], pwd)
			if err != nil {
				return err
			}
			cli.logger.Info("password reset", zapUser(usr)...)
			return nil
		},
	}
}

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) (user.User, error) {
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		return user.User{}, err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	return cli.usrRepo.UpdateUser(ctx, usr)
}
