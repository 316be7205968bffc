package email

// Config holds email delivery configuration.
// Postmark tokens are optional: without them NewFromConfig falls back to the
// DevSender outbox so local sign-in links can be read from DevDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"noreply@lookacross.io"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@lookacross.io"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// Postmark reports whether both Postmark tokens are present.
func (c Config) Postmark() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
