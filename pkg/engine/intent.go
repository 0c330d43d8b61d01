package engine

import "sort"

// ResourceKind identifies the inventory resource type an intent creates.
type ResourceKind string

const (
	KindRole          ResourceKind = "role"
	KindManufacturer  ResourceKind = "manufacturer"
	KindDeviceType    ResourceKind = "device-type"
	KindLocationType  ResourceKind = "location-type"
	KindStatus        ResourceKind = "status"
	KindLocation      ResourceKind = "location"
	KindNamespace     ResourceKind = "namespace"
	KindPrefix        ResourceKind = "prefix"
	KindDevice        ResourceKind = "device"
	KindIPAddress     ResourceKind = "ip-address"
	KindInterface     ResourceKind = "interface"
	KindIPAssignment  ResourceKind = "ip-assignment"
	KindPrimaryIP     ResourceKind = "primary-ip"
)

// Ref is a bound identifier: the id and display string the inventory
// returned when a resource was created.
type Ref struct {
	ID      string
	Display string
}

// Bindings maps binding keys to refs. Keys are write-once: rebinding is a
// contract violation, as is reading a key that was never bound.
type Bindings struct {
	refs map[string]Ref
}

// NewBindings creates an empty binding table.
func NewBindings() *Bindings {
	return &Bindings{refs: make(map[string]Ref)}
}

// Bind records the ref for a key. Binding a key twice fails.
func (b *Bindings) Bind(key string, ref Ref) error {
	if _, exists := b.refs[key]; exists {
		return NewContractError("binding %q written twice", key)
	}
	b.refs[key] = ref
	return nil
}

// Ref returns the ref bound to a key. Reading an unbound key fails.
func (b *Bindings) Ref(key string) (Ref, error) {
	ref, ok := b.refs[key]
	if !ok {
		return Ref{}, NewContractError("binding %q referenced before it was bound", key)
	}
	return ref, nil
}

// Has reports whether a key is bound.
func (b *Bindings) Has(key string) bool {
	_, ok := b.refs[key]
	return ok
}

// Keys returns all bound keys in sorted order.
func (b *Bindings) Keys() []string {
	keys := make([]string, 0, len(b.refs))
	for k := range b.refs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Intent is one planned inventory API call. Payloads are deferred closures
// because they embed identifiers that only exist once dependencies have
// executed and bound their refs.
type Intent struct {
	// ID uniquely identifies the intent within a plan.
	ID string

	// Kind is the resource type this intent creates or updates.
	Kind ResourceKind

	// Method and Path are the API call to issue. Path may contain a
	// {binding} placeholder when the real path depends on a bound id;
	// ResolvePath then produces the concrete path at execution time.
	Method string
	Path   string

	// ResolvePath, when set, computes the concrete request path from
	// bound identifiers. Path stays as the display form for plans.
	ResolvePath func(b *Bindings) (string, error)

	// DependsOn lists the intent IDs whose bound identifiers this
	// intent's payload or path embeds.
	DependsOn []string

	// Payload builds the request body. It may read any binding produced
	// by an intent listed in DependsOn.
	Payload func(b *Bindings) (map[string]any, error)

	// BindAs, when non-empty, is the binding key the returned object's
	// id and display are stored under.
	BindAs string
}

// staticPayload returns a payload builder for a body that needs no bindings.
func staticPayload(body map[string]any) func(*Bindings) (map[string]any, error) {
	return func(*Bindings) (map[string]any, error) {
		return body, nil
	}
}
