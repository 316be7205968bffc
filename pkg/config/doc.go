// Package config loads typed configuration from the process environment.
//
// Structs describe their variables with caarlos0/env tags; an optional .env
// file in the working directory is read once through godotenv before the first
// parse. Parsed values are cached per type, so every package may call Load for
// its own Config without re-reading the environment.
//
//	type Config struct {
//		APIKey string `env:"FIREBASE_API_KEY"`
//		TTL    time.Duration `env:"SESSION_TTL" envDefault:"720h"`
//	}
//
// ResetCache and ForceReload exist for tests that mutate the environment.
package config
