package google

import (
	"context"
	"fmt"

	"github.com/hd-notes/notes-api/internal/config"
	"github.com/hd-notes/notes-api/internal/domain"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// Profile holds the verified identity claims extracted from a Google ID token.
type Profile struct {
	Sub           string
	Email         string
	EmailVerified bool
	DisplayName   string
	Avatar        string
}

// Client drives the Google sign-in flow: building the consent redirect,
// exchanging the callback code, and verifying the resulting ID token
// against our client ID.
type Client struct {
	oauth    *oauth2.Config
	clientID string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"profile", "email"},
			Endpoint:     googleoauth.Endpoint,
		},
		clientID: cfg.GoogleClientID,
	}
}

// AuthURL returns the consent-screen URL the client is redirected to.
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades the callback code for a verified profile. The exchange and
// the ID-token signature check both run against Google; any failure is an
// authentication failure, never a partial profile.
func (c *Client) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange failed: %w", domain.ErrUnauthorized)
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, fmt.Errorf("google response carried no id_token: %w", domain.ErrUnauthorized)
	}
	return c.verifyIDToken(ctx, rawID)
}

func (c *Client) verifyIDToken(ctx context.Context, raw string) (*Profile, error) {
	p, err := idtoken.Validate(ctx, raw, c.clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", domain.ErrUnauthorized)
	}
	email, _ := p.Claims["email"].(string)
	emailVerified, _ := p.Claims["email_verified"].(bool)
	name, _ := p.Claims["name"].(string)
	picture, _ := p.Claims["picture"].(string)
	return &Profile{
		Sub:           p.Subject,
		Email:         email,
		EmailVerified: emailVerified,
		DisplayName:   name,
		Avatar:        picture,
	}, nil
}
