package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// AnyUser in a key entry lets the key act for every userId.
const AnyUser = "*"

// Identity is what an API key grants: the userIds it may register and query
// for.
type Identity struct {
	Key   string
	Users []string
}

func (i Identity) AllowsUser(userID string) bool {
	for _, candidate := range i.Users {
		if candidate == AnyUser || candidate == userID {
			return true
		}
	}
	return false
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses "key:user|user,key2:*".
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		key, usersRaw, found := strings.Cut(strings.TrimSpace(entry), ":")
		if !found {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:user|user", entry)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key", entry)
		}
		var users []string
		for _, user := range strings.Split(usersRaw, "|") {
			user = strings.TrimSpace(user)
			if user == "" {
				continue
			}
			users = append(users, user)
		}
		if len(users) == 0 {
			return nil, fmt.Errorf("invalid static key entry %q: at least one user is required", entry)
		}
		if _, exists := validator.keys[key]; exists {
			return nil, fmt.Errorf("duplicate static key entry for key %q", key)
		}
		sort.Strings(users)
		validator.keys[key] = Identity{Key: key, Users: users}
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
