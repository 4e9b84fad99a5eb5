package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// ClientDevice describes the client behind a notification session
type ClientDevice struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, unknown
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	IsBot      bool   `json:"is_bot"`
}

var tabletMarkers = []string{"ipad", "tablet", "kindle", "playbook", "nexus 7", "nexus 9", "nexus 10", "xoom", "sm-t"}

// ParseClientDevice extracts device information from a User-Agent header
func ParseClientDevice(userAgent string) ClientDevice {
	if strings.TrimSpace(userAgent) == "" {
		return ClientDevice{DeviceType: "unknown", OS: "Unknown", Browser: "Unknown"}
	}

	parser := ua.New(userAgent)

	device := ClientDevice{
		DeviceType: "desktop",
		OS:         "Unknown",
		Browser:    "Unknown",
		IsBot:      parser.Bot(),
	}

	if osInfo := parser.OSInfo(); osInfo.Name != "" {
		device.OS = strings.TrimSpace(osInfo.Name + " " + osInfo.Version)
	}
	if name, _ := parser.Browser(); name != "" {
		device.Browser = name
	}

	if parser.Mobile() {
		device.DeviceType = "mobile"
		lower := strings.ToLower(userAgent)
		for _, marker := range tabletMarkers {
			if strings.Contains(lower, marker) {
				device.DeviceType = "tablet"
				break
			}
		}
	}
	return device
}
