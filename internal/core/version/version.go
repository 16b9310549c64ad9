// Package version reports build information
package version

import (
	"runtime/debug"
	"sync"
)

// Service is the name every binary reports
const Service = "pulseboard"

// BuildInfo describes the running build
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// set with -ldflags "-X pulseboard/internal/core/version.version=v1.2.0 -X ...commit=abcd -X ...date=2026-01-02"
var (
	version = "dev"
	commit  = ""
	date    = ""
)

var vcs = sync.OnceValues(func() (string, string) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	var rev, at string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.time":
			at = s.Value
		}
	}
	return rev, at
})

// Info returns the build information; commit and date fall back to the vcs stamp of the binary
func Info() BuildInfo {
	c, d := commit, date
	rev, at := vcs()
	if c == "" {
		c = rev
	}
	if d == "" {
		d = at
	}
	return BuildInfo{Service: Service, Version: version, Commit: c, Date: d}
}

// ShortCommit is the first seven characters of the commit or "unknown"
func ShortCommit() string {
	c := Info().Commit
	if len(c) < 7 {
		return "unknown"
	}
	return c[:7]
}
