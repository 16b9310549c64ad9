package api

import (
	"crypto/subtle"
	"strings"

	"pulseboard/internal/modkit/httpkit"
	perr "pulseboard/internal/platform/errors"
	pnet "pulseboard/internal/platform/net"
)

type apiToken struct {
	name   string
	secret []byte
	org    string
}

// ParseTokens reads CORE_API_TOKENS style entries: "name:secret" or "name:secret@org"
// entries are comma separated; an empty list yields a nil func and auth stays off
func ParseTokens(entries []string) (httpkit.TokenFunc, error) {
	var toks []apiToken
	seen := map[string]bool{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		name, rest, ok := strings.Cut(e, ":")
		if !ok || name == "" || rest == "" {
			return nil, perr.InvalidArgf("token entry %q must be name:secret[@org]", name)
		}
		secret, org, _ := strings.Cut(rest, "@")
		if secret == "" {
			return nil, perr.InvalidArgf("token %q has an empty secret", name)
		}
		if seen[name] {
			return nil, perr.InvalidArgf("token %q is listed twice", name)
		}
		seen[name] = true
		toks = append(toks, apiToken{name: name, secret: []byte(secret), org: org})
	}
	if len(toks) == 0 {
		return nil, nil
	}

	return func(raw string) (pnet.Caller, error) {
		b := []byte(raw)
		match := -1
		// every entry is compared so timing does not reveal the position
		for i, t := range toks {
			if subtle.ConstantTimeCompare(b, t.secret) == 1 && match < 0 {
				match = i
			}
		}
		if match < 0 {
			return pnet.Caller{}, perr.Unauthorizedf("unknown token")
		}
		return pnet.Caller{User: toks[match].name, Org: toks[match].org}, nil
	}, nil
}
