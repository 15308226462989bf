package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx    context.Context
	client *Client
}

var _ oauth2.TokenSource = (*tokenSource)(nil)

// TokenSource adapts the stored session to oauth2.TokenSource, refreshing through the same
// shared refresh as Execute when the token is about to expire. It allows the session to drive
// an oauth2.NewClient.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	c := ts.client
	current, ok := c.store.AccessToken()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if c.inspector.IsExpiredOrExpiringSoon(c.expiryBuffer) {
		if err := c.refreshStale(ts.ctx, triggerTokenSource, current); err != nil {
			return nil, fmt.Errorf("[tokenSource.Token] %w", err)
		}
		if current, ok = c.store.AccessToken(); !ok {
			return nil, ErrNotAuthenticated
		}
	}

	tok := &oauth2.Token{AccessToken: current, TokenType: "Bearer"}
	if exp, ok := c.inspector.ExpiresAt(); ok {
		tok.Expiry = exp
	}
	return tok, nil
}
