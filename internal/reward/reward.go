// Package reward defines the reward catalog's entities and the pure rules
// that govern them: field validation, typed field patches, duplication and
// normalization. Nothing in this package performs I/O.
package reward

import (
	"fmt"
	"strings"
)

// Validity is the redemption-timing rule of a reward.
type Validity string

const (
	ValidityInstant Validity = "instant"
	ValidityLimited Validity = "limited"
)

// Validities lists the recognized validity modes in display order.
var Validities = []Validity{ValidityInstant, ValidityLimited}

// Valid reports whether v is a recognized validity mode.
func (v Validity) Valid() bool {
	return v == ValidityInstant || v == ValidityLimited
}

// ParseValidity converts a user- or wire-supplied string into a Validity.
func ParseValidity(s string) (Validity, error) {
	v := Validity(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown validity %q (want instant or limited)", s)
	}
	return v, nil
}

// Reward is a loyalty reward record. ID 0 marks a draft that the backend
// has not assigned an identifier to yet.
type Reward struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Points         int      `json:"points"`
	Quota          int      `json:"quota"` // 0 means unlimited
	Validity       Validity `json:"validity"`
	NeverExpire    bool     `json:"neverExpire"`
	ExpirationDate string   `json:"expirationDate,omitempty"` // YYYY-MM-DD
	StoreID        int      `json:"storeId"`
}

// IsDraft reports whether r has not been persisted yet.
func (r Reward) IsDraft() bool {
	return r.ID == 0
}

// Expiration renders the expiration rule the way the preview shows it.
func (r Reward) Expiration() string {
	if r.NeverExpire {
		return "Never expires"
	}
	return r.ExpirationDate
}

// QuotaLabel renders the quota with 0 shown as unlimited.
func (r Reward) QuotaLabel() string {
	if r.Quota == 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", r.Quota)
}

// Store is read-only reference data owned by the backend.
type Store struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Blank returns the initial draft for "add new".
func Blank() Reward {
	return Reward{
		Validity:    ValidityInstant,
		NeverExpire: true,
	}
}

// DuplicatePrefix is prepended to the name of a duplicated reward.
const DuplicatePrefix = "Copy of "

// Duplicate returns a draft copy of r usable as a template: every field is
// kept except the id, which is reset, and the name, which is prefixed.
func Duplicate(r Reward) Reward {
	r.ID = 0
	r.Name = DuplicatePrefix + r.Name
	return r
}

// Normalize clears an expiration date left over on a reward that never
// expires, so exactly one of the two expiration rules is recorded.
func Normalize(r Reward) Reward {
	if r.NeverExpire {
		r.ExpirationDate = ""
	}
	return r
}

// FindStore returns the store with the given id from stores.
func FindStore(stores []Store, id int) (Store, bool) {
	for _, s := range stores {
		if s.ID == id {
			return s, true
		}
	}
	return Store{}, false
}
