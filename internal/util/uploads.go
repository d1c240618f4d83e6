package util

import (
	"fmt"
	"net"
	"net/http"

	"harbor-server/internal/config"
)

// GetFullURL builds an absolute URL for a server-relative path, using
// the configured domain when one is set and the request host otherwise.
func GetFullURL(r *http.Request, path string) string {
	scheme := "http"
	defaultPort := "80"
	if r.TLS != nil {
		scheme = "https"
		defaultPort = "443"
	}

	if path != "" && path[0] != '/' {
		path = "/" + path
	}

	var host string
	var port string

	if config.Conf.Domain != "" {
		host = config.Conf.Domain
		port = config.Conf.Port
	} else {
		host, port, _ = net.SplitHostPort(r.Host)
		if host == "" {
			host = r.Host
		}
		if port == "" {
			port = config.Conf.Port
		}
	}

	if len(port) > 0 && port[0] == ':' {
		port = port[1:]
	}

	if port != "" && port != defaultPort {
		host = fmt.Sprintf("%s:%s", host, port)
	}

	return fmt.Sprintf("%s://%s%s", scheme, host, path)
}
