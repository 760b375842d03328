package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known job board or applicant tracking system.
type Platform string

const (
	// PlatformGreenhouse is the Greenhouse ATS platform
	PlatformGreenhouse Platform = "greenhouse"
	// PlatformLever is the Lever ATS platform
	PlatformLever Platform = "lever"
	// PlatformWorkday is the Workday ATS platform
	PlatformWorkday Platform = "workday"
	// PlatformLinkedIn is the LinkedIn jobs board
	PlatformLinkedIn Platform = "linkedin"
	// PlatformIndeed is the Indeed jobs board
	PlatformIndeed Platform = "indeed"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the job board platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	return PlatformForHost(parsed.Hostname())
}

// PlatformForHost identifies the platform from a bare hostname.
func PlatformForHost(host string) Platform {
	host = strings.ToLower(host)

	switch {
	case strings.Contains(host, "greenhouse.io"):
		return PlatformGreenhouse
	case strings.Contains(host, "lever.co"):
		return PlatformLever
	case strings.Contains(host, "workday.com"), strings.Contains(host, "myworkdayjobs.com"):
		return PlatformWorkday
	case strings.Contains(host, "linkedin.com"):
		return PlatformLinkedIn
	case strings.Contains(host, "indeed.com"):
		return PlatformIndeed
	}
	return PlatformUnknown
}

// RendersClientSide reports whether the platform's job description is
// injected by JavaScript, so a plain HTTP fetch never contains it.
func (p Platform) RendersClientSide() bool {
	switch p {
	case PlatformWorkday, PlatformLinkedIn:
		return true
	}
	return false
}
