// Package assets embeds the files the binaries need at runtime:
// database migrations, email templates, the authorization model
// and the list of common passwords.
package assets

import "embed"

//go:embed migrations/*.sql templates/email/* authz/* common-passwords.txt
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
	AuthzModelPath    = "authz/model.conf"
	AuthzPolicyPath   = "authz/policy.csv"

	CommonPasswordsPath = "common-passwords.txt"
)
