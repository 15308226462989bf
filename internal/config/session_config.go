package config

import "time"

type Session struct {
	ExpiryBuffer time.Duration `env:"PROPMAN_EXPIRY_BUFFER,default=5m" validate:"gte=0"`
	// 0 means no client-side timeout
	HTTPTimeout time.Duration `env:"PROPMAN_HTTP_TIMEOUT,default=0s" validate:"gte=0"`
}

var _ SessionConfig = Session{}

func (s Session) GetExpiryBuffer() time.Duration {
	return s.ExpiryBuffer
}

func (s Session) GetHTTPTimeout() time.Duration {
	return s.HTTPTimeout
}
