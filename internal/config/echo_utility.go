package config

import "runtime"

// defaultEchoUtility picks the host echo-request command name per spec.md §6.
// Actual argument shaping (count flag, etc.) lives in package prober, which
// treats this purely as a PATH-resolved binary name.
func defaultEchoUtility() string {
	if runtime.GOOS == "windows" {
		return "ping.exe"
	}
	return "ping"
}
