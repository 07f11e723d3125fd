package session

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"

	"github.com/troopfundraiser/frclient/pkg/config"
)

// OAuthRefresher runs the refresh_token grant against the identity provider's token endpoint.
type OAuthRefresher struct {
	cfg *oauth2.Config
}

// NewOAuthRefresher builds a refresher for the configured identity provider client.
func NewOAuthRefresher(cfg config.AuthConfig) (*OAuthRefresher, error) {
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, errors.New("token url is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("client id is required")
	}
	return &OAuthRefresher{cfg: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}}, nil
}

func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	// An empty access token forces the source to hit the token endpoint.
	src := r.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Tokens{}, err
	}
	idToken, _ := tok.Extra("id_token").(string)
	return Tokens{
		AccessToken:  tok.AccessToken,
		IDToken:      idToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}
