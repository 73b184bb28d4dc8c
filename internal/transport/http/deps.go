package http

import (
	"github.com/hd-notes/notes-api/internal/infrastructure/dynamo"
	"github.com/hd-notes/notes-api/internal/infrastructure/google"
	jwtinfra "github.com/hd-notes/notes-api/internal/infrastructure/jwt"
	"github.com/hd-notes/notes-api/internal/infrastructure/smtp"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo     *dynamo.UserRepo
	NoteRepo     *dynamo.NoteRepo
	Mailer       smtp.Mailer
	JWTProvider  *jwtinfra.Provider
	GoogleClient *google.Client
}
