package ch

import (
	"os"
	"runtime"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"

	"pulseboard/internal/core/version"
)

// BuildClientInfo returns a ClientInfo describing this process and role
// role examples: "api", "rollup", "seed"
func BuildClientInfo(role, tag string) clickhouse.ClientInfo {
	host, _ := os.Hostname()

	type kv = struct{ Name, Version string }
	return clickhouse.ClientInfo{Products: []kv{
		{Name: version.Service, Version: strings.TrimSpace(tag)},
		{Name: "role", Version: strings.TrimSpace(role)},
		{Name: "go", Version: runtime.Version()},
		{Name: "commit", Version: version.ShortCommit()},
		{Name: "host", Version: strings.TrimSpace(host)},
	}}
}
