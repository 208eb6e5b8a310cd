package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveClientIP(t *testing.T) {
	tests := []struct {
		name         string
		forwardedFor string
		realIP       string
		remoteAddr   string
		expected     string
	}{
		{"first forwarded hop wins", "203.0.113.7, 10.0.0.1", "10.0.0.2", "10.0.0.3:5000", "203.0.113.7"},
		{"real ip when not forwarded", "", "198.51.100.4", "10.0.0.3:5000", "198.51.100.4"},
		{"remote addr without port", "", "", "192.0.2.10:51234", "192.0.2.10"},
		{"remote addr without port already", "", "", "192.0.2.10", "192.0.2.10"},
		{"blank forwarded entry falls through", " , 10.0.0.1", "", "192.0.2.10:1", "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveClientIP(tt.forwardedFor, tt.realIP, tt.remoteAddr))
		})
	}
}

func TestResolveSystemName(t *testing.T) {
	const ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

	assert.Equal(t, "FIN-LAPTOP-07", ResolveSystemName(" FIN-LAPTOP-07 ", "stored", ua, "1.2.3.4"))
	assert.Equal(t, "stored", ResolveSystemName("", "stored", ua, "1.2.3.4"))
	assert.Equal(t, "Windows System", ResolveSystemName("", "  ", ua, "1.2.3.4"))
}

func TestDetectSystemName(t *testing.T) {
	tests := []struct {
		userAgent string
		expected  string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "Windows System"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2)", "macOS System"},
		{"Mozilla/5.0 (X11; Linux x86_64)", "Linux System"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8)", "Linux System"},
		{"Dalvik/2.1.0 (Android 13)", "Android Device"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", "macOS System"},
		{"Mozilla/5.0 (iPad; CPU OS 17_0)", "iOS Device"},
		{"curl/8.4.0", "Unknown System (192.0.2.1)"},
	}

	for _, tt := range tests {
		t.Run(tt.userAgent, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectSystemName(tt.userAgent, "192.0.2.1"))
		})
	}
}

func TestFileKinds(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.pdf", "d.xlsx", "e.pptx", "f.csv"} {
		assert.True(t, IsAllowedFile(name), name)
	}
	for _, name := range []string{"a.exe", "b.sh", "c", "d.svg"} {
		assert.False(t, IsAllowedFile(name), name)
	}

	assert.True(t, IsImageFile("shot.bmp"))
	assert.False(t, IsImageFile("report.pdf"))
}
