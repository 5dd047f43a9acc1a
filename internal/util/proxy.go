package util

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// NewProxyFunc builds the proxy selector shared by the oracle providers and the
// opinion loader. Without explicit proxies it defers to the environment.
// noProxy is a comma-separated list of hosts or ".domain" suffixes that bypass the proxy.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	bypass := splitNoProxy(noProxy)

	return func(req *http.Request) (*url.URL, error) {
		if bypassed(req.URL.Hostname(), bypass) {
			return nil, nil
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

func splitNoProxy(noProxy string) []string {
	var hosts []string
	for _, h := range strings.Split(noProxy, ",") {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func bypassed(host string, bypass []string) bool {
	host = strings.ToLower(host)
	for _, b := range bypass {
		switch {
		case b == "*":
			return true
		case strings.HasPrefix(b, "."):
			if strings.HasSuffix(host, b) || host == b[1:] {
				return true
			}
		case host == b:
			return true
		}
	}
	// Loopback never goes through a proxy when a bypass list is configured
	if len(bypass) > 0 {
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return true
		}
	}
	return false
}
