package config

import "time"

type JWTConfig struct {
	Secret     []byte
	Expiration time.Duration
}
