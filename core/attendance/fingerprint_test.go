package attendance

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestDeviceInfoFingerprint(t *testing.T) {
	info := DeviceInfo{
		UserAgent:  "Mozilla/5.0",
		ScreenSize: "1920x1080",
		Timezone:   "Africa/Kinshasa",
		Language:   "fr-CD",
		IPSubnet:   "196.223.14",
	}

	// deterministic: identical inputs yield the identical digest
	if info.Fingerprint() != info.Fingerprint() {
		t.Error("Fingerprint() not deterministic")
	}

	// digest is SHA-256 over the |-joined fields in fixed order
	sum := sha256.Sum256([]byte("Mozilla/5.0|1920x1080|Africa/Kinshasa|fr-CD|196.223.14"))
	if want := hex.EncodeToString(sum[:]); info.Fingerprint() != want {
		t.Errorf("Fingerprint() = %v, want %v", info.Fingerprint(), want)
	}

	// any single differing field yields a different digest
	variants := []DeviceInfo{
		{UserAgent: "curl/7.64", ScreenSize: info.ScreenSize, Timezone: info.Timezone, Language: info.Language, IPSubnet: info.IPSubnet},
		{UserAgent: info.UserAgent, ScreenSize: "800x600", Timezone: info.Timezone, Language: info.Language, IPSubnet: info.IPSubnet},
		{UserAgent: info.UserAgent, ScreenSize: info.ScreenSize, Timezone: "UTC", Language: info.Language, IPSubnet: info.IPSubnet},
		{UserAgent: info.UserAgent, ScreenSize: info.ScreenSize, Timezone: info.Timezone, Language: "en-US", IPSubnet: info.IPSubnet},
		{UserAgent: info.UserAgent, ScreenSize: info.ScreenSize, Timezone: info.Timezone, Language: info.Language, IPSubnet: "10.0.0"},
	}
	for i, v := range variants {
		if v.Fingerprint() == info.Fingerprint() {
			t.Errorf("variant %d: Fingerprint() collision", i)
		}
	}

	// total over missing fields: the zero value still fingerprints
	var zero DeviceInfo
	zeroSum := sha256.Sum256([]byte("||||"))
	if want := hex.EncodeToString(zeroSum[:]); zero.Fingerprint() != want {
		t.Errorf("Fingerprint() = %v, want %v", zero.Fingerprint(), want)
	}
}
