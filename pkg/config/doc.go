// Package config loads typed configuration structs from the environment
// (caarlos0/env tags), with a one-time .env load via godotenv and per-type
// caching so every component sees the same parsed values.
package config
