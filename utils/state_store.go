package utils

import (
	"context"
	"sync"
	"time"
)

const stateKeyPrefix = "oauth:state:"

// Login nonces normally live in Redis next to the token blacklist. The
// process-local map only catches the no-Redis case and is enough for a
// single API instance.
var (
	localStates   = map[string]time.Time{}
	localStatesMu sync.Mutex
)

// SaveState records an OAuth login nonce ahead of the provider redirect.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, stateKeyPrefix+state, "1", ttl).Err(); err == nil {
			return
		}
	}
	localStatesMu.Lock()
	localStates[state] = time.Now().Add(ttl)
	localStatesMu.Unlock()
}

// ConsumeState burns a nonce and reports whether it was live. GETDEL makes
// the check-and-remove atomic, so a state survives exactly one callback.
func ConsumeState(state string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if v, err := rc.GetDel(ctx, stateKeyPrefix+state).Result(); err == nil {
			return v != ""
		}
	}
	localStatesMu.Lock()
	deadline, ok := localStates[state]
	delete(localStates, state)
	localStatesMu.Unlock()
	return ok && time.Now().Before(deadline)
}
