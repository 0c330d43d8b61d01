package nautobot

import "fmt"

// API endpoint paths. These are fixed by the Nautobot REST API, not
// configuration.
const (
	EndpointRoles         = "/api/extras/roles/"
	EndpointStatuses      = "/api/extras/statuses/"
	EndpointManufacturers = "/api/dcim/manufacturers/"
	EndpointDeviceTypes   = "/api/dcim/device-types/"
	EndpointLocationTypes = "/api/dcim/location-types/"
	EndpointLocations     = "/api/dcim/locations/"
	EndpointDevices       = "/api/dcim/devices/"
	EndpointInterfaces    = "/api/dcim/interfaces/"
	EndpointNamespaces    = "/api/ipam/namespaces/"
	EndpointPrefixes      = "/api/ipam/prefixes/"
	EndpointIPAddresses   = "/api/ipam/ip-addresses/"
	EndpointIPToInterface = "/api/ipam/ip-address-to-interface/"
)

// DevicePath returns the per-device path used for the primary address patch.
func DevicePath(id string) string {
	return fmt.Sprintf("%s%s/", EndpointDevices, id)
}
