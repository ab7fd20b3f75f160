package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const defaultRoomIdleTimeout = 30 * time.Second

type Config struct {
	ServerAddr      string
	SigningKey      []byte
	AllowedOrigins  []string
	RoomIdleTimeout time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, base64Secret string, allowedOrigins []string, roomIdleTimeout time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	if roomIdleTimeout <= 0 {
		roomIdleTimeout = defaultRoomIdleTimeout
	}

	return &Config{
		ServerAddr:      serverAddr,
		SigningKey:      signingKey,
		AllowedOrigins:  allowedOrigins,
		RoomIdleTimeout: roomIdleTimeout,
	}, nil
}
