//go:build !go1.22

package main

import "log/slog"

// slog.SetLogLoggerLevel does not exist before Go 1.22; the bridge from the
// log package stays at its fixed default level on older toolchains.
func setLogLoggerLevel(slog.Level) {}
