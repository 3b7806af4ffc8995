// Package version provides application version information.
// The version can be set at build time using ldflags:
//
//	go build -ldflags "-X github.com/ramonehamilton/GCG-Companion/internal/version.Version=v1.2.3"
package version

import "fmt"

// ServiceName identifies the service in version responses and the User-Agent.
const ServiceName = "gcg-companion"

// Version is the application version. It defaults to "dev" and can be
// overridden at build time using ldflags.
var Version = "dev"

// GetVersion returns the current application version.
func GetVersion() string {
	return Version
}

// UserAgent returns the User-Agent sent to the data provider.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", ServiceName, Version)
}
