package reward

import (
	"sort"
	"strings"
)

// Field names a reward attribute by its wire name.
type Field string

const (
	FieldName           Field = "name"
	FieldDescription    Field = "description"
	FieldPoints         Field = "points"
	FieldQuota          Field = "quota"
	FieldValidity       Field = "validity"
	FieldNeverExpire    Field = "neverExpire"
	FieldExpirationDate Field = "expirationDate"
	FieldStoreID        Field = "storeId"
)

// Messages shown next to an offending field.
const (
	MsgNameRequired        = "Reward name is required"
	MsgDescriptionRequired = "Description is required"
	MsgPointsPositive      = "Points must be greater than 0"
	MsgQuotaNonNegative    = "Quota must be 0 or greater"
	MsgValidityRequired    = "Validity is required"
	MsgValidityUnknown     = "Validity must be instant or limited"
	MsgExpirationRequired  = "Expiration date is required when not set to never expire"
	MsgStoreRequired       = "Store selection is required"
	MsgStoreUnavailable    = "Selected store is not available"
)

// FieldErrors maps each offending field to one message. An empty map means
// the draft may be submitted.
type FieldErrors map[Field]string

// OK reports whether there are no field errors.
func (fe FieldErrors) OK() bool {
	return len(fe) == 0
}

// Fields returns the offending fields in a stable order.
func (fe FieldErrors) Fields() []Field {
	fields := make([]Field, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Error joins the messages so FieldErrors can travel as an error value.
func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, f := range fe.Fields() {
		parts = append(parts, string(f)+": "+fe[f])
	}
	return strings.Join(parts, "; ")
}

// Validate checks draft against the catalog rules. It is pure and
// deterministic; the result lists one message per offending field.
func Validate(draft Reward) FieldErrors {
	errs := FieldErrors{}
	if draft.Name == "" {
		errs[FieldName] = MsgNameRequired
	}
	if draft.Description == "" {
		errs[FieldDescription] = MsgDescriptionRequired
	}
	if draft.Points <= 0 {
		errs[FieldPoints] = MsgPointsPositive
	}
	if draft.Quota < 0 {
		errs[FieldQuota] = MsgQuotaNonNegative
	}
	switch {
	case draft.Validity == "":
		errs[FieldValidity] = MsgValidityRequired
	case !draft.Validity.Valid():
		errs[FieldValidity] = MsgValidityUnknown
	}
	if !draft.NeverExpire && draft.ExpirationDate == "" {
		errs[FieldExpirationDate] = MsgExpirationRequired
	}
	if draft.StoreID == 0 {
		errs[FieldStoreID] = MsgStoreRequired
	}
	return errs
}

// ValidateStores runs Validate and additionally requires a non-zero storeId
// to name one of the loaded stores. With no stores loaded there is nothing
// to check against, so only the non-zero rule applies.
func ValidateStores(draft Reward, stores []Store) FieldErrors {
	errs := Validate(draft)
	if draft.StoreID == 0 || len(stores) == 0 {
		return errs
	}
	if _, ok := FindStore(stores, draft.StoreID); !ok {
		errs[FieldStoreID] = MsgStoreUnavailable
	}
	return errs
}
