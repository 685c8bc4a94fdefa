package ota

import "github.com/moffa90/go-mw4ota/protocol"

// ShouldUpdate reports whether the manifest names a newer firmware than the
// device runs. Equal versions do not update.
func ShouldUpdate(deviceVersion, manifestVersion uint32) bool {
	return manifestVersion > deviceVersion
}

// CheckVersion applies ShouldUpdate to a raw firmware version value.
// A malformed value means the update cannot proceed.
func CheckVersion(deviceValue []byte, manifestVersion uint32) bool {
	deviceVersion, err := protocol.ParseVersion(deviceValue)
	if err != nil {
		return false
	}
	return ShouldUpdate(deviceVersion, manifestVersion)
}
