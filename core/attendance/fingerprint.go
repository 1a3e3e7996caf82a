package attendance

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns the hex SHA-256 digest of the five device info
// fields joined with "|", in the fixed order
// user_agent|screen_size|timezone|language|ip_subnet.
// It is a weak duplicate-device signal, not an identity proof; the raw
// inputs are never persisted.
func (d DeviceInfo) Fingerprint() string {
	input := strings.Join([]string{d.UserAgent, d.ScreenSize, d.Timezone, d.Language, d.IPSubnet}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
