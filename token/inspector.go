package token

import (
	"time"
)

// DefaultExpiryBuffer is how long before exp a token is already treated as expiring.
const DefaultExpiryBuffer = 5 * time.Minute

// AccessTokenGetter provides the current access token
type AccessTokenGetter interface {
	AccessToken() (string, bool)
}

// Inspector judges whether the stored access token is still usable, without network access.
type Inspector struct {
	tokens  AccessTokenGetter
	nowFunc func() time.Time
}

type InspectorOption func(*Inspector)

func WithNowFunc(now func() time.Time) InspectorOption {
	return func(i *Inspector) {
		i.nowFunc = now
	}
}

func NewInspector(tokens AccessTokenGetter, options ...InspectorOption) *Inspector {
	i := &Inspector{
		tokens:  tokens,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// IsExpiredOrExpiringSoon fails closed: a missing, undecodable or exp-less token counts as
// expired. Otherwise it is expiring when no more than buffer remains before exp.
func (i *Inspector) IsExpiredOrExpiringSoon(buffer time.Duration) bool {
	exp, ok := i.ExpiresAt()
	if !ok {
		return true
	}
	return exp.Sub(i.nowFunc()) <= buffer
}

// ExpiresAt returns the exp of the stored access token
func (i *Inspector) ExpiresAt() (time.Time, bool) {
	raw, ok := i.tokens.AccessToken()
	if !ok {
		return time.Time{}, false
	}
	claims, ok := DecodeClaims(raw)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return *claims.ExpiresAt, true
}
