package ticket

import (
	"fmt"
	"net"
	"strings"

	"anoa.com/itdesk/pkg/storage"
)

var allowedExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true,
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"csv": true, "ppt": true, "pptx": true,
}

var imageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true,
}

func IsAllowedFile(name string) bool {
	return allowedExtensions[storage.Ext(name)]
}

func IsImageFile(name string) bool {
	return imageExtensions[storage.Ext(name)]
}

// ResolveClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote address without its port.
func ResolveClientIP(forwardedFor, realIP, remoteAddr string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(realIP); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// ResolveSystemName picks the explicit form value, then the name stored on
// the user, then a guess from the user agent.
func ResolveSystemName(explicit, stored, userAgent, remoteAddr string) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return name
	}
	if name := strings.TrimSpace(stored); name != "" {
		return name
	}
	return DetectSystemName(userAgent, remoteAddr)
}

// DetectSystemName maps well-known user agent fragments to a display name.
// Checks run in order, so Android agents, which also carry "linux", report
// as Linux.
func DetectSystemName(userAgent, remoteAddr string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows System"
	case strings.Contains(ua, "mac os x"), strings.Contains(ua, "macos"):
		return "macOS System"
	case strings.Contains(ua, "linux"):
		return "Linux System"
	case strings.Contains(ua, "android"):
		return "Android Device"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "iOS Device"
	default:
		return fmt.Sprintf("Unknown System (%s)", remoteAddr)
	}
}
