package console

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/jaqcquesndav/Wanzo-admin/internal/config"
)

// provider speaks the authorization code flow with the identity provider.
type provider struct {
	cfg  config.ProviderConfig
	http *http.Client
}

// providerTokens is what the console keeps from a code exchange.
type providerTokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int64
}

// baseURL accepts either a bare domain or a full URL.
func (p provider) baseURL() string {
	domain := strings.TrimSuffix(p.cfg.Domain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

func (p provider) oauth2Config() *oauth2.Config {
	base := p.baseURL()
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.cfg.RedirectURI,
		Scopes:       strings.Fields(p.cfg.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/authorize",
			TokenURL:  base + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (p provider) authorizeURL(state string) string {
	var opts []oauth2.AuthCodeOption
	if p.cfg.Audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", p.cfg.Audience))
	}
	return p.oauth2Config().AuthCodeURL(state, opts...)
}

func (p provider) exchange(ctx context.Context, code string) (*providerTokens, error) {
	if p.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
	}
	tok, err := p.oauth2Config().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	tokens := &providerTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		tokens.IDToken = id
	}
	if !tok.Expiry.IsZero() {
		tokens.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	return tokens, nil
}
