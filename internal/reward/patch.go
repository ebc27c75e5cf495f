package reward

// Patch is a single-field change to a draft. Every implementation touches
// exactly the field it names.
type Patch interface {
	Field() Field
	apply(*Reward)
}

// Apply returns r with patches applied in order.
func Apply(r Reward, patches ...Patch) Reward {
	for _, p := range patches {
		p.apply(&r)
	}
	return r
}

type SetName string

func (p SetName) Field() Field     { return FieldName }
func (p SetName) apply(r *Reward) { r.Name = string(p) }

type SetDescription string

func (p SetDescription) Field() Field     { return FieldDescription }
func (p SetDescription) apply(r *Reward) { r.Description = string(p) }

type SetPoints int

func (p SetPoints) Field() Field     { return FieldPoints }
func (p SetPoints) apply(r *Reward) { r.Points = int(p) }

type SetQuota int

func (p SetQuota) Field() Field     { return FieldQuota }
func (p SetQuota) apply(r *Reward) { r.Quota = int(p) }

type SetValidity Validity

func (p SetValidity) Field() Field     { return FieldValidity }
func (p SetValidity) apply(r *Reward) { r.Validity = Validity(p) }

// SetNeverExpire toggles the never-expire flag. It leaves any typed
// expiration date alone; Normalize drops it at submit time.
type SetNeverExpire bool

func (p SetNeverExpire) Field() Field     { return FieldNeverExpire }
func (p SetNeverExpire) apply(r *Reward) { r.NeverExpire = bool(p) }

type SetExpirationDate string

func (p SetExpirationDate) Field() Field     { return FieldExpirationDate }
func (p SetExpirationDate) apply(r *Reward) { r.ExpirationDate = string(p) }

type SetStore int

func (p SetStore) Field() Field     { return FieldStoreID }
func (p SetStore) apply(r *Reward) { r.StoreID = int(p) }
