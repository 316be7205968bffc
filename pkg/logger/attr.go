package logger

import (
	"log/slog"
	"strings"
)

// Error returns an empty Attr for a nil error so callers can log unconditionally.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID is the "user_id" attribute.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Role is the "role" attribute.
func Role(role string) slog.Attr {
	return slog.String("role", role)
}

// PartnerID logs a nil id as an empty Attr.
func PartnerID(id *int64) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Int64("partner_id", *id)
}

// Component names the package emitting a record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

func Path(p string) slog.Attr {
	return slog.String("path", p)
}

// Email logs an address with the local part masked: "j***@example.com".
func Email(addr string) slog.Attr {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return slog.String("email", "***")
	}
	return slog.String("email", addr[:1]+"***"+addr[at:])
}
