package engine

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clabsync/clabsync/pkg/nautobot"
	"github.com/clabsync/clabsync/pkg/topology"
)

// Binding keys for the shared resources every plan creates once.
const (
	bindRole         = "role"
	bindManufacturer = "manufacturer"
	bindDeviceType   = "device-type"
	bindLocationType = "location-type"
	bindStatusActive = "status-active"
	bindLocation     = "location"
	bindNamespace    = "namespace"
)

// statusContentTypes are the content types both lab statuses cover.
var statusContentTypes = []string{
	"dcim.device",
	"dcim.interface",
	"dcim.location",
	"ipam.ipaddress",
	"ipam.prefix",
}

// Options parameterizes the fixed lab scaffolding a plan creates before any
// per-node resources.
type Options struct {
	RoleName         string
	ManufacturerName string
	DeviceModel      string
	LocationTypeName string
	LocationName     string
	NamespaceName    string

	ActiveStatusName  string
	ActiveStatusColor string

	AlertedStatusName  string
	AlertedStatusColor string

	MgmtPrefixDescription string
	MgmtInterfaceName     string
	MgmtInterfaceLabel    string
}

// DefaultOptions returns the standard lab scaffolding names.
func DefaultOptions() Options {
	return Options{
		RoleName:         "network_device",
		ManufacturerName: "Arista",
		DeviceModel:      "cEOS",
		LocationTypeName: "site",
		LocationName:     "lab",
		NamespaceName:    "lab-default",

		ActiveStatusName:  "lab-active",
		ActiveStatusColor: "aaf0d1",

		AlertedStatusName:  "Alerted",
		AlertedStatusColor: "ff5a36",

		MgmtPrefixDescription: "lab-mgmt-prefix",
		MgmtInterfaceName:     "Management0",
		MgmtInterfaceLabel:    "mgmt",
	}
}

// PlanStep is the static view of one intent, for plan output.
type PlanStep struct {
	Seq    int
	ID     string
	Kind   ResourceKind
	Method string
	Path   string
}

// Plan is an ordered list of intents plus its identity. Intent order is the
// canonical execution order; Validate proves it is also a topological order
// of the dependency graph.
type Plan struct {
	ID        string
	Topology  string
	CreatedAt time.Time
	Intents   []*Intent
}

// Steps returns the static step list for plan display.
func (p *Plan) Steps() []PlanStep {
	steps := make([]PlanStep, len(p.Intents))
	for i, intent := range p.Intents {
		steps[i] = PlanStep{
			Seq:    i + 1,
			ID:     intent.ID,
			Kind:   intent.Kind,
			Method: intent.Method,
			Path:   intent.Path,
		}
	}
	return steps
}

// Graph builds and returns the validated dependency graph.
func (p *Plan) Graph() (*Graph, error) {
	return NewDAGBuilder().BuildGraph(p.Intents)
}

// ToDOT renders the plan's dependency graph in Graphviz DOT format.
func (p *Plan) ToDOT() (string, error) {
	b := NewDAGBuilder()
	if _, err := b.BuildGraph(p.Intents); err != nil {
		return "", err
	}
	return b.ToDOT(), nil
}

// Validate checks the plan's dependency graph and proves the intent order is
// executable: the graph is acyclic and every dependency is positioned before
// its dependents.
func (p *Plan) Validate() error {
	if _, err := NewDAGBuilder().BuildGraph(p.Intents); err != nil {
		return err
	}

	seen := make(map[string]bool, len(p.Intents))
	for _, intent := range p.Intents {
		for _, dep := range intent.DependsOn {
			if !seen[dep] {
				return NewContractError("intent %s ordered before its dependency %s", intent.ID, dep)
			}
		}
		seen[intent.ID] = true
	}

	return nil
}

// BuildPlan constructs the full intent sequence for a merged topology:
// the shared scaffolding first, then per-node devices, addresses,
// interfaces, and the primary address patch, in node declaration order.
func BuildPlan(doc *topology.Document, ov *topology.Overrides, opts Options) (*Plan, error) {
	p := &Plan{
		ID:        uuid.NewString(),
		Topology:  doc.Name,
		CreatedAt: time.Now().UTC(),
	}
	add := func(in *Intent) { p.Intents = append(p.Intents, in) }

	add(&Intent{
		ID:     bindRole,
		Kind:   KindRole,
		Method: http.MethodPost,
		Path:   nautobot.EndpointRoles,
		BindAs: bindRole,
		Payload: staticPayload(map[string]any{
			"name":          opts.RoleName,
			"content_types": []string{"dcim.device"},
		}),
	})

	add(&Intent{
		ID:     bindManufacturer,
		Kind:   KindManufacturer,
		Method: http.MethodPost,
		Path:   nautobot.EndpointManufacturers,
		BindAs: bindManufacturer,
		Payload: staticPayload(map[string]any{
			"name": opts.ManufacturerName,
		}),
	})

	// The device type references the manufacturer by name, not id, but the
	// manufacturer must still exist first.
	add(&Intent{
		ID:        bindDeviceType,
		Kind:      KindDeviceType,
		Method:    http.MethodPost,
		Path:      nautobot.EndpointDeviceTypes,
		DependsOn: []string{bindManufacturer},
		BindAs:    bindDeviceType,
		Payload: staticPayload(map[string]any{
			"manufacturer": opts.ManufacturerName,
			"model":        opts.DeviceModel,
		}),
	})

	add(&Intent{
		ID:     bindLocationType,
		Kind:   KindLocationType,
		Method: http.MethodPost,
		Path:   nautobot.EndpointLocationTypes,
		BindAs: bindLocationType,
		Payload: staticPayload(map[string]any{
			"name":          opts.LocationTypeName,
			"content_types": []string{"dcim.device"},
		}),
	})

	add(&Intent{
		ID:     bindStatusActive,
		Kind:   KindStatus,
		Method: http.MethodPost,
		Path:   nautobot.EndpointStatuses,
		BindAs: bindStatusActive,
		Payload: staticPayload(map[string]any{
			"name":          opts.ActiveStatusName,
			"content_types": statusContentTypes,
			"color":         opts.ActiveStatusColor,
		}),
	})

	add(&Intent{
		ID:     "status-alerted",
		Kind:   KindStatus,
		Method: http.MethodPost,
		Path:   nautobot.EndpointStatuses,
		Payload: staticPayload(map[string]any{
			"name":          opts.AlertedStatusName,
			"content_types": statusContentTypes,
			"color":         opts.AlertedStatusColor,
		}),
	})

	add(&Intent{
		ID:        bindLocation,
		Kind:      KindLocation,
		Method:    http.MethodPost,
		Path:      nautobot.EndpointLocations,
		DependsOn: []string{bindLocationType, bindStatusActive},
		BindAs:    bindLocation,
		Payload: func(b *Bindings) (map[string]any, error) {
			lt, err := b.Ref(bindLocationType)
			if err != nil {
				return nil, err
			}
			st, err := b.Ref(bindStatusActive)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"name":          opts.LocationName,
				"location_type": map[string]any{"id": lt.ID},
				"status":        map[string]any{"id": st.ID},
			}, nil
		},
	})

	add(&Intent{
		ID:     bindNamespace,
		Kind:   KindNamespace,
		Method: http.MethodPost,
		Path:   nautobot.EndpointNamespaces,
		BindAs: bindNamespace,
		Payload: staticPayload(map[string]any{
			"name": opts.NamespaceName,
		}),
	})

	if ov != nil {
		for _, entry := range ov.Prefixes {
			prefix := entry.Prefix
			name := entry.Name
			add(&Intent{
				ID:        "prefix:" + prefix,
				Kind:      KindPrefix,
				Method:    http.MethodPost,
				Path:      nautobot.EndpointPrefixes,
				DependsOn: []string{bindNamespace, bindStatusActive},
				Payload:   prefixPayload(prefix, name),
			})
		}
	}

	if doc.Mgmt.IPv4Subnet == "" {
		return nil, NewContractError("topology %q has no management subnet (mgmt.ipv4-subnet)", doc.Name)
	}
	add(&Intent{
		ID:        "prefix:mgmt",
		Kind:      KindPrefix,
		Method:    http.MethodPost,
		Path:      nautobot.EndpointPrefixes,
		DependsOn: []string{bindNamespace, bindStatusActive},
		Payload:   prefixPayload(doc.Mgmt.IPv4Subnet, opts.MgmtPrefixDescription),
	})

	for _, name := range doc.Topology.Nodes.Names() {
		node, _ := doc.Topology.Nodes.Get(name)
		if err := addNodeIntents(p, name, node, opts); err != nil {
			return nil, err
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// addNodeIntents appends the per-node sequence: device, one address,
// interface, and assignment triple per declared interface, the management
// triple, then the primary address patch.
func addNodeIntents(p *Plan, name string, node topology.Node, opts Options) error {
	if node.Kind == "" {
		return NewContractError("node %q has no kind", name)
	}
	if node.MgmtIPv4 == "" {
		return NewContractError("node %q has no mgmt-ipv4 address", name)
	}

	deviceID := "device:" + name
	p.Intents = append(p.Intents, &Intent{
		ID:        deviceID,
		Kind:      KindDevice,
		Method:    http.MethodPost,
		Path:      nautobot.EndpointDevices,
		DependsOn: []string{bindRole, bindDeviceType, bindLocation, bindStatusActive},
		BindAs:    deviceID,
		Payload: func(b *Bindings) (map[string]any, error) {
			role, err := b.Ref(bindRole)
			if err != nil {
				return nil, err
			}
			dt, err := b.Ref(bindDeviceType)
			if err != nil {
				return nil, err
			}
			loc, err := b.Ref(bindLocation)
			if err != nil {
				return nil, err
			}
			st, err := b.Ref(bindStatusActive)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"name":        name,
				"role":        map[string]any{"id": role.ID},
				"device_type": map[string]any{"id": dt.ID},
				"location":    map[string]any{"id": loc.ID},
				"status":      map[string]any{"id": st.ID},
				"custom_fields": map[string]any{
					"containerlab": map[string]any{
						"node_kind":    node.Kind,
						"node_address": node.MgmtIPv4,
					},
				},
			}, nil
		},
	})

	for _, intf := range node.Interfaces {
		addInterfaceTriple(p, name, deviceID, interfaceSpec{
			suffix:      intf.Name,
			address:     intf.IPv4,
			name:        intf.Name,
			description: "Interface " + intf.Name,
			label:       intf.Role,
		})
	}

	// Management triple, always last before the primary address patch.
	mgmtIPID := addInterfaceTriple(p, name, deviceID, interfaceSpec{
		suffix:      "mgmt",
		address:     node.MgmtIPv4,
		name:        opts.MgmtInterfaceName,
		description: "Management Interface",
		label:       opts.MgmtInterfaceLabel,
	})

	p.Intents = append(p.Intents, &Intent{
		ID:        "primary-ip:" + name,
		Kind:      KindPrimaryIP,
		Method:    http.MethodPatch,
		Path:      nautobot.EndpointDevices + "{" + deviceID + "}/",
		DependsOn: []string{deviceID, mgmtIPID},
		ResolvePath: func(b *Bindings) (string, error) {
			device, err := b.Ref(deviceID)
			if err != nil {
				return "", err
			}
			return nautobot.DevicePath(device.ID), nil
		},
		Payload: func(b *Bindings) (map[string]any, error) {
			ip, err := b.Ref(mgmtIPID)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"primary_ip4": map[string]any{"id": ip.ID},
			}, nil
		},
	})

	return nil
}

// interfaceSpec carries the per-interface parameters for one
// address/interface/assignment triple.
type interfaceSpec struct {
	suffix      string
	address     string
	name        string
	description string
	label       string
}

// addInterfaceTriple appends the address, interface, and assignment intents
// for one interface and returns the address binding key.
func addInterfaceTriple(p *Plan, nodeName, deviceID string, spec interfaceSpec) string {
	ipID := "ip:" + nodeName + ":" + spec.suffix
	intfID := "interface:" + nodeName + ":" + spec.suffix
	mapID := "ip-assignment:" + nodeName + ":" + spec.suffix

	p.Intents = append(p.Intents, &Intent{
		ID:        ipID,
		Kind:      KindIPAddress,
		Method:    http.MethodPost,
		Path:      nautobot.EndpointIPAddresses,
		DependsOn: []string{bindNamespace, bindStatusActive},
		BindAs:    ipID,
		Payload: func(b *Bindings) (map[string]any, error) {
			ns, err := b.Ref(bindNamespace)
			if err != nil {
				return nil, err
			}
			st, err := b.Ref(bindStatusActive)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"address":   spec.address,
				"status":    map[string]any{"id": st.ID},
				"namespace": map[string]any{"id": ns.ID},
				"type":      "host",
			}, nil
		},
	})

	p.Intents = append(p.Intents, &Intent{
		ID:        intfID,
		Kind:      KindInterface,
		Method:    http.MethodPost,
		Path:      nautobot.EndpointInterfaces,
		DependsOn: []string{deviceID, bindStatusActive},
		BindAs:    intfID,
		Payload: func(b *Bindings) (map[string]any, error) {
			device, err := b.Ref(deviceID)
			if err != nil {
				return nil, err
			}
			st, err := b.Ref(bindStatusActive)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"device":      map[string]any{"id": device.ID},
				"name":        spec.name,
				"type":        "virtual",
				"enabled":     true,
				"description": spec.description,
				"status":      map[string]any{"id": st.ID},
				"label":       spec.label,
			}, nil
		},
	})

	p.Intents = append(p.Intents, &Intent{
		ID:        mapID,
		Kind:      KindIPAssignment,
		Method:    http.MethodPost,
		Path:      nautobot.EndpointIPToInterface,
		DependsOn: []string{ipID, intfID},
		Payload: func(b *Bindings) (map[string]any, error) {
			ip, err := b.Ref(ipID)
			if err != nil {
				return nil, err
			}
			intf, err := b.Ref(intfID)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"ip_address": map[string]any{"id": ip.ID},
				"interface":  map[string]any{"id": intf.ID},
			}, nil
		},
	})

	return ipID
}

// prefixPayload builds a prefix body bound to the shared namespace and
// active status.
func prefixPayload(prefix, description string) func(*Bindings) (map[string]any, error) {
	return func(b *Bindings) (map[string]any, error) {
		ns, err := b.Ref(bindNamespace)
		if err != nil {
			return nil, err
		}
		st, err := b.Ref(bindStatusActive)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"prefix":      prefix,
			"namespace":   map[string]any{"id": ns.ID},
			"type":        "network",
			"status":      map[string]any{"id": st.ID},
			"description": description,
		}, nil
	}
}
