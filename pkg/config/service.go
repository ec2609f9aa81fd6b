package config

import "github.com/marginalia-app/marginalia/pkg/version"

// PublicConfig is the subset of the configuration that clients may read.
type PublicConfig struct {
	MaxUploadSize  int64  `json:"maxUploadSize"`
	OTPLength      int    `json:"otpLength"`
	OTPTTLSeconds  int    `json:"otpTtlSeconds"`
	SessionSeconds int    `json:"sessionSeconds"`
	Environment    string `json:"environment"`
	Version        string `json:"version"`
}

type Service struct {
	config *Config
}

func NewService(cfg *Config) *Service {
	return &Service{config: cfg}
}

func (s *Service) RetrievePublicConfig() *PublicConfig {
	return &PublicConfig{
		MaxUploadSize:  s.config.MaxUploadSize,
		OTPLength:      s.config.OTPLength,
		OTPTTLSeconds:  int(s.config.OTPTTL.Seconds()),
		SessionSeconds: int(s.config.SessionDuration.Seconds()),
		Environment:    s.config.Environment,
		Version:        version.Version,
	}
}
