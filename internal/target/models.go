package target

import (
	"errors"
	"strings"
)

// Target is a dialable political entity (legislator, governor, office).
//
// Invariants:
// - Key is globally unique and immutable once assigned.
// - Number may be empty: the target is temporarily undialable and the call
//   flow must skip it gracefully.
type Target struct {
	ID  int64  `json:"id" db:"id"`
	Key string `json:"key" db:"key"` // namespaced, e.g. us:bioguide:S000148

	Title    string `json:"title,omitempty" db:"title"`
	Name     string `json:"name" db:"name"`
	District string `json:"district,omitempty" db:"district"`
	Number   string `json:"number,omitempty" db:"number"` // E.164, may carry an extension suffix
	Location string `json:"location,omitempty" db:"location"`

	Offices []Office `json:"offices,omitempty"`
}

// Office is one dialable location of a target. UID is the stable per-office
// identifier used to reconcile upstream data changes.
type Office struct {
	UID     string `json:"uid" db:"uid"`
	Name    string `json:"name,omitempty" db:"name"`
	Address string `json:"address,omitempty" db:"address"`
	Type    string `json:"type,omitempty" db:"type"`
	Number  string `json:"number,omitempty" db:"number"`
}

var ErrBadKey = errors.New("target: malformed key")

// ParseKey splits a namespaced key into its data-source prefix and uid.
// "us:bioguide:S000148" → ("us:bioguide", "S000148").
func ParseKey(key string) (prefix, uid string, err error) {
	i := strings.LastIndex(key, ":")
	if i <= 0 || i == len(key)-1 {
		return "", "", ErrBadKey
	}
	return key[:i], key[i+1:], nil
}
