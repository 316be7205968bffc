package emaillink

import (
	"strings"
	"time"
)

// Delivery modes for sign-in links.
const (
	// DeliveryProvider lets the identity provider mail the link itself.
	DeliveryProvider = "provider"
	// DeliveryApp asks the provider to return the link and mails it through
	// package email. Requires service-account credentials.
	DeliveryApp = "app"
)

// Config controls link delivery, the pending record and rate limits.
type Config struct {
	AppURL       string        `env:"APP_URL" envDefault:"http://localhost:8080"`
	VerifyPath   string        `env:"EMAIL_LINK_VERIFY_PATH" envDefault:"/signin/verify"`
	PendingTTL   time.Duration `env:"EMAIL_LINK_PENDING_TTL" envDefault:"1h"`
	Delivery     string        `env:"EMAIL_LINK_DELIVERY" envDefault:"provider"`
	RateCapacity int           `env:"EMAIL_LINK_RATE_CAPACITY" envDefault:"3"`
	RateInterval time.Duration `env:"EMAIL_LINK_RATE_INTERVAL" envDefault:"1m"`
	// IPRateCapacity bounds link requests per client address.
	IPRateCapacity int `env:"EMAIL_LINK_IP_RATE_CAPACITY" envDefault:"20"`
}

// AppDelivery reports whether links should be mailed by this service.
func (c Config) AppDelivery() bool {
	return strings.EqualFold(strings.TrimSpace(c.Delivery), DeliveryApp)
}

// ContinueURL is where the provider sends the user after they open a link.
func (c Config) ContinueURL() string {
	return strings.TrimRight(c.AppURL, "/") + c.VerifyPath
}
