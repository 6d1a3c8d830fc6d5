package ecommerce

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// WooCommerceConfig holds configuration for the WooCommerce REST API
type WooCommerceConfig struct {
	// BaseURL is the store URL, e.g. https://shop.example.com
	BaseURL string
	// ConsumerKey is the REST API key used with basic authentication
	ConsumerKey string
	// ConsumerSecret is the REST API secret used with basic authentication
	ConsumerSecret string
	// APIVersion is the catalog API namespace
	APIVersion string
	// MediaAPIVersion is the WordPress media API namespace
	MediaAPIVersion string
	// Timeout is the fixed per-request timeout
	Timeout time.Duration
	// UserAgent is sent with every request
	UserAgent string
}

const (
	// DefaultWooCommerceAPIVersion is the catalog API namespace
	DefaultWooCommerceAPIVersion = "wc/v3"
	// DefaultMediaAPIVersion is the WordPress media API namespace
	DefaultMediaAPIVersion = "wp/v2"
	// DefaultWooCommerceTimeout is the per-request timeout
	DefaultWooCommerceTimeout = 30 * time.Second

	defaultUserAgent = "catalogsync/1.0"
)

// Errors for WooCommerce configuration
var (
	ErrWooCommerceConfigMissingBaseURL = errors.New("woocommerce: base url is required")
	ErrWooCommerceConfigInvalidBaseURL = errors.New("woocommerce: base url must be an absolute http(s) url")
	ErrWooCommerceConfigMissingKey     = errors.New("woocommerce: consumer key is required")
	ErrWooCommerceConfigMissingSecret  = errors.New("woocommerce: consumer secret is required")
)

// NewWooCommerceConfig creates a new WooCommerce configuration with defaults
func NewWooCommerceConfig(baseURL, consumerKey, consumerSecret string) *WooCommerceConfig {
	return &WooCommerceConfig{
		BaseURL:         baseURL,
		ConsumerKey:     consumerKey,
		ConsumerSecret:  consumerSecret,
		APIVersion:      DefaultWooCommerceAPIVersion,
		MediaAPIVersion: DefaultMediaAPIVersion,
		Timeout:         DefaultWooCommerceTimeout,
		UserAgent:       defaultUserAgent,
	}
}

// Validate validates the configuration and fills defaults
func (c *WooCommerceConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrWooCommerceConfigMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrWooCommerceConfigInvalidBaseURL
	}
	if c.ConsumerKey == "" {
		return ErrWooCommerceConfigMissingKey
	}
	if c.ConsumerSecret == "" {
		return ErrWooCommerceConfigMissingSecret
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = DefaultWooCommerceAPIVersion
	}
	if c.MediaAPIVersion == "" {
		c.MediaAPIVersion = DefaultMediaAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultWooCommerceTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return nil
}

// RootURL returns the REST index resource used by the reachability check
func (c *WooCommerceConfig) RootURL() string {
	return c.BaseURL + "/wp-json/"
}

// CatalogURL returns the catalog endpoint for path
func (c *WooCommerceConfig) CatalogURL(path string) string {
	return c.BaseURL + "/wp-json/" + c.APIVersion + path
}

// MediaURL returns the media library endpoint
func (c *WooCommerceConfig) MediaURL() string {
	return c.BaseURL + "/wp-json/" + c.MediaAPIVersion + "/media"
}
