package nats

import (
	"fmt"
	"net/url"
	"strings"
)

// ToClientURL converts a connector URL into one the NATS client understands.
// tcp:// is the broker-neutral spelling of nats://.
func ToClientURL(raw string) string {
	if strings.HasPrefix(raw, "tcp://") {
		return "nats://" + strings.TrimPrefix(raw, "tcp://")
	}
	return raw
}

// ParseRemoteURLs turns a federation address into leafnode remote URLs.
// Besides a single URL it accepts the static:(url1,url2) list form.
func ParseRemoteURLs(raw string) ([]*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "static:") {
		list := strings.TrimPrefix(raw, "static:")
		if !strings.HasPrefix(list, "(") || !strings.HasSuffix(list, ")") {
			return nil, fmt.Errorf("malformed static url list: %s", raw)
		}
		raw = strings.TrimSuffix(strings.TrimPrefix(list, "("), ")")
	}

	var urls []*url.URL
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		u, err := url.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid remote url %q: %w", part, err)
		}
		if u.Hostname() == "" || u.Port() == "" {
			return nil, fmt.Errorf("remote url %q needs host and port", part)
		}

		switch u.Scheme {
		case "tcp", "leaf", "nats":
			u.Scheme = "nats-leaf"
		case "nats-leaf", "tls", "ws", "wss":
		default:
			return nil, fmt.Errorf("unsupported remote url scheme %q", u.Scheme)
		}
		urls = append(urls, u)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("no remote urls in %q", raw)
	}
	return urls, nil
}

// NormalizeServerName ensures a server name doesn't have characters NATS rejects
func NormalizeServerName(name string) string {
	replacer := strings.NewReplacer(
		" ", "_",
		",", "_",
		":", "_",
		"?", "_",
		"[", "_",
		"]", "_",
	)
	return replacer.Replace(name)
}
