package proxy

import (
	"strings"
	"unicode"
)

// Merge collapses records that point at the same endpoint with the same
// credentials, unioning their protocols and exclusion lists. Order of first
// appearance is kept.
func Merge(records []Settings) []Settings {
	var out []Settings
	index := make(map[string]int)
	for _, r := range records {
		key := mergeKey(r)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, r.Clone())
			continue
		}
		for _, p := range r.Protocols {
			if !out[i].HasProtocol(p) {
				out[i].Protocols = append(out[i].Protocols, p)
			}
		}
		out[i].NoProxy = appendUnique(out[i].NoProxy, r.NoProxy...)
	}
	return out
}

func mergeKey(s Settings) string {
	key := s.Host + "\x00" + s.Port
	if s.Auth != nil {
		key += "\x00" + s.Auth.Username + "\x00" + s.Auth.Password
	}
	return key
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}

// SplitList splits an exclusion list on commas, pipes and whitespace,
// dropping empty entries.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// WithNoProxy attaches an exclusion list to every record.
func WithNoProxy(records []Settings, noProxy []string) []Settings {
	if len(noProxy) == 0 {
		return records
	}
	for i := range records {
		records[i].NoProxy = appendUnique(records[i].NoProxy, noProxy...)
	}
	return records
}
