//go:build !linux

package main

// InitPlatform stands in for real hardware when not running on
// Linux, so the daemon still starts and the command plane can be
// exercised against a serial loopback or a test harness. cfg.Backend
// is irrelevant here: off-linux there never was a real backend to
// select.
func InitPlatform(cfg Config) (Backend, error) {
	return newDummyPlatform(), nil
}
