// Package config provides 12-factor configuration management for the
// mini-app runtime.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional YAML file can overlay environment values for embedded hosts
// that ship a static configuration.
//
// Configuration Sections:
//   - Server: host gateway HTTP settings (port, host)
//   - Registry: mini-app registry endpoint and credentials
//   - Cache: on-disk bundle cache root
//   - SecureStorage: backend selection and byte quota
//   - Signature: archive verification policy
//   - Pinning: certificate pins for the registry host
//   - Logging, RateLimit: ambient concerns
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Registry at %s\n", cfg.Registry.BaseURL)
//
// Environment Variables (MINIAPP_ prefix):
//   - MINIAPP_REGISTRY_BASE_URL, MINIAPP_REGISTRY_HOST_ID
//   - MINIAPP_CACHE_ROOT, MINIAPP_SECURE_STORAGE_BACKEND
//   - MINIAPP_SIGNATURE_MANDATORY, MINIAPP_LOG_LEVEL
package config
