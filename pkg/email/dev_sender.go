package email

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jernejc/at-fe-sub003/pkg/logger"
)

// OutboxFile is the JSON Lines index DevSender appends to, one entry per
// message.
const OutboxFile = "outbox.jsonl"

// DevSender is the local outbox used when no mail provider is configured.
// Messages land in dir as HTML files and are indexed in OutboxFile together
// with the first link in the body, so a developer can follow a sign-in link
// without opening a mailbox.
type DevSender struct {
	dir string
	log *slog.Logger
	now func() time.Time

	mu sync.Mutex
}

// NewDevSender writes messages below dir, creating it on first use.
func NewDevSender(dir string, log *slog.Logger) *DevSender {
	if log == nil {
		log = logger.Nop()
	}
	return &DevSender{dir: dir, log: log.With(logger.Component("email")), now: time.Now}
}

// OutboxEntry is one line of OutboxFile.
type OutboxEntry struct {
	SentAt  time.Time `json:"sent_at"`
	SendTo  string    `json:"send_to"`
	Subject string    `json:"subject"`
	Tag     string    `json:"tag,omitempty"`
	Link    string    `json:"link,omitempty"`
	File    string    `json:"file"`
}

// SendEmail stores the message and logs where to find it.
func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dir, 0o700); err != nil {
		return fmt.Errorf("%w: outbox: %w", ErrFailedToSendEmail, err)
	}

	entry := OutboxEntry{
		SentAt:  d.now().UTC(),
		SendTo:  params.SendTo,
		Subject: params.Subject,
		Tag:     params.Tag,
		Link:    firstLink(params.BodyHTML),
	}
	entry.File = fmt.Sprintf("%s_%s.html", entry.SentAt.Format("20060102T150405.000000"), fileSlug(params.SendTo))

	if err := os.WriteFile(filepath.Join(d.dir, entry.File), []byte(params.BodyHTML), 0o600); err != nil {
		return fmt.Errorf("%w: outbox: %w", ErrFailedToSendEmail, err)
	}
	if err := d.appendIndex(entry); err != nil {
		return fmt.Errorf("%w: outbox index: %w", ErrFailedToSendEmail, err)
	}

	d.log.InfoContext(ctx, "email written to outbox",
		logger.Email(params.SendTo),
		slog.String("subject", params.Subject),
		slog.String("link", entry.Link),
		slog.String("file", filepath.Join(d.dir, entry.File)),
	)
	return nil
}

func (d *DevSender) appendIndex(entry OutboxEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(d.dir, OutboxFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var (
	hrefPattern = regexp.MustCompile(`href="([^"]+)"`)
	unsafeChars = regexp.MustCompile(`[^a-z0-9._-]+`)
)

func firstLink(body string) string {
	m := hrefPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return html.UnescapeString(m[1])
}

// fileSlug turns a recipient address into a file name fragment.
func fileSlug(addr string) string {
	s := unsafeChars.ReplaceAllString(strings.ToLower(strings.ReplaceAll(addr, "@", "_at_")), "_")
	if len(s) > 64 {
		s = s[:64]
	}
	if s == "" {
		return "message"
	}
	return s
}
