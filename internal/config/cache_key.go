package config

import "fmt"

// CacheKeyStruct builds the Redis keys used by the client.
type CacheKeyStruct struct {
	prefix string
}

// IdentityKey returns the key holding the signed-in identity of a profile.
func (k *CacheKeyStruct) IdentityKey(profile string) string {
	if profile == "" {
		profile = "default"
	}
	return fmt.Sprintf("%s:%s:identity", k.prefix, profile)
}

var CacheKey = &CacheKeyStruct{prefix: "exstem:client"}
