// Package emailsvc implements core.EmailService.
package emailsvc

import "github.com/unistock/stockroom/core"

// New returns the console service in DEBUG or when no sendgrid key is configured, the sendgrid service otherwise.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.TestMode || conf.Email.SendgridAPIKey == "" {
		return NewConsoleService(conf, logger)
	}
	return NewSendgridService(conf, logger)
}
