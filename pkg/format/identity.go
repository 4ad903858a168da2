package format

import (
	"os/user"
	"strconv"
)

// ResolveUser maps a numeric uid string to a username via the system user
// database. Anything that is not a resolvable non-negative uid comes back
// unchanged. Lookups are cheap and infrequent, so no caching.
func ResolveUser(id string) string {
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 {
		return id
	}
	u, err := user.LookupId(strconv.Itoa(n))
	if err != nil || u.Username == "" {
		return id
	}
	return u.Username
}
