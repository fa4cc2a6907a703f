package config

import (
	"net"
	"net/url"
	"os"
	"sync"
)

// dockerHostAlias reaches services on the host machine from a container.
const dockerHostAlias = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool

	// dockerEnvPath exists in every Docker container.
	dockerEnvPath = "/.dockerenv"
)

// IsRunningInDocker reports whether the process runs inside a Docker
// container. The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat(dockerEnvPath)
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps a loopback host to host.docker.internal when
// running in Docker, so the postgres cache on the host stays reachable.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	return resolveLoopback(host)
}

// ResolveURLForDocker applies ResolveHostForDocker to the host of rawURL,
// keeping the port. A local model server behind an OpenAI-compatible base
// URL is the usual case. Unparseable or empty URLs are returned unchanged.
func ResolveURLForDocker(rawURL string) string {
	if rawURL == "" || !IsRunningInDocker() {
		return rawURL
	}
	return resolveURLLoopback(rawURL)
}

func resolveLoopback(host string) string {
	if host == "localhost" || host == "127.0.0.1" {
		return dockerHostAlias
	}
	return host
}

func resolveURLLoopback(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := resolveLoopback(u.Hostname())
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	return u.String()
}
