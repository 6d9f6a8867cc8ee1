package pkg

import (
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
)

var localDockerIpRegex = regexp.MustCompile(`^172\.\d{1,3}\.0\.1:\d{1,5}`)

func IPIsLocal(ipAddr string) bool {
	// local development ?
	if strings.HasPrefix(ipAddr, "127.0.0.1:") {
		return true
	}

	// caller within a docker container ?
	return localDockerIpRegex.MatchString(ipAddr)
}

// ReadUserIP reads the real user IP from the request headers,
// falling back to the remote address.
func ReadUserIP(r *http.Request) (string, error) {
	ipAddr := r.Header.Get("X-Real-Ip")
	if ipAddr == "" {
		ipAddr = r.Header.Get("X-Forwarded-For")
	}
	if ipAddr == "" {
		ipAddr = r.RemoteAddr
	}

	if IPIsLocal(ipAddr) {
		return "localhost", nil
	}

	if host, _, err := net.SplitHostPort(ipAddr); err == nil {
		ipAddr = host
	}

	if net.ParseIP(ipAddr) == nil {
		return "", fmt.Errorf("ip addr %s is invalid", ipAddr)
	}

	return ipAddr, nil
}
