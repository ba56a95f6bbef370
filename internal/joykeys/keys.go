// Package joykeys implements the four-step progressive unlock funnel.
package joykeys

import (
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"
)

// Key identifies one of the four joy keys, unlocked strictly in order.
type Key int

const (
	KeyGratitude Key = iota + 1
	KeyShare
	KeyNominate
	KeyCheckout
)

// All lists the keys in unlock order.
var All = []Key{KeyGratitude, KeyShare, KeyNominate, KeyCheckout}

var keyNames = map[Key]string{
	KeyGratitude: "gratitude",
	KeyShare:     "share",
	KeyNominate:  "nominate",
	KeyCheckout:  "checkout",
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// Valid reports whether k is one of the four keys.
func (k Key) Valid() bool {
	return k >= KeyGratitude && k <= KeyCheckout
}

func (k Key) bit() int {
	return 1 << (int(k) - 1)
}

// ParseKey accepts a key name or number.
func ParseKey(s string) (Key, error) {
	for k, name := range keyNames {
		if name == s || fmt.Sprint(int(k)) == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown joy key %q", s)
}

// IsUnlocked reports whether key k is unlocked in state.
func IsUnlocked(state models.JoyKeys, k Key) bool {
	return k.Valid() && state.Unlocked&k.bit() != 0
}

// Complete reports whether every key is unlocked.
func Complete(state models.JoyKeys) bool {
	for _, k := range All {
		if !IsUnlocked(state, k) {
			return false
		}
	}
	return true
}

// Next returns the first locked key, or false when all keys are unlocked.
func Next(state models.JoyKeys) (Key, bool) {
	for _, k := range All {
		if !IsUnlocked(state, k) {
			return k, true
		}
	}
	return 0, false
}

// Advance unlocks k at the given time. It returns the new state and whether it
// changed. Unlocking an already unlocked key is a no-op; unlocking a key whose
// predecessor is locked fails with store.ErrInvalidTransition.
func Advance(state models.JoyKeys, k Key, at time.Time) (models.JoyKeys, bool, error) {
	if !k.Valid() {
		return state, false, fmt.Errorf("unknown joy key %d", int(k))
	}
	if IsUnlocked(state, k) {
		return state, false, nil
	}
	if k > KeyGratitude && !IsUnlocked(state, k-1) {
		return state, false, fmt.Errorf("%w: joy key %s requires %s", store.ErrInvalidTransition, k, k-1)
	}

	next := state
	next.Unlocked = state.Unlocked | k.bit()
	next.UnlockedAt = make(map[int]time.Time, len(state.UnlockedAt)+1)
	for i, t := range state.UnlockedAt {
		next.UnlockedAt[i] = t
	}
	next.UnlockedAt[int(k)] = at
	next.UpdatedAt = at
	return next, true, nil
}
