package config

import (
	"encoding/base64"
	"fmt"
)

type Config struct {
	ServerAddr        string
	DatabaseDSN       string
	SigningKey        []byte
	AllowedOrigins    []string
	InternalAPIKey    string
	UserServiceURL    string
	JournalServiceURL string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret, internalAPIKey, userServiceURL, journalServiceURL string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if internalAPIKey == "" {
		return nil, fmt.Errorf("internal API key cannot be empty")
	}
	if userServiceURL == "" {
		return nil, fmt.Errorf("user service URL cannot be empty")
	}
	if journalServiceURL == "" {
		return nil, fmt.Errorf("journal service URL cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:        serverAddr,
		DatabaseDSN:       databaseDSN,
		SigningKey:        signingKey,
		AllowedOrigins:    allowedOrigins,
		InternalAPIKey:    internalAPIKey,
		UserServiceURL:    userServiceURL,
		JournalServiceURL: journalServiceURL,
	}, nil
}
