package domain

import (
	"fmt"
	"strings"
)

// ServiceType identifies a freight service line a margin rule can be keyed on.
type ServiceType string

const (
	ServiceSeaFreightFCL    ServiceType = "sea_freight_fcl"
	ServiceSeaFreightLCL    ServiceType = "sea_freight_lcl"
	ServiceAirFreight       ServiceType = "air_freight"
	ServiceRoadFreight      ServiceType = "road_freight"
	ServiceRailFreight      ServiceType = "rail_freight"
	ServiceCourier          ServiceType = "courier"
	ServiceCustomsClearance ServiceType = "customs_clearance"
	ServiceWarehousing      ServiceType = "warehousing"
	ServiceInsurance        ServiceType = "insurance"
)

var serviceTypes = map[ServiceType]struct{}{
	ServiceSeaFreightFCL:    {},
	ServiceSeaFreightLCL:    {},
	ServiceAirFreight:       {},
	ServiceRoadFreight:      {},
	ServiceRailFreight:      {},
	ServiceCourier:          {},
	ServiceCustomsClearance: {},
	ServiceWarehousing:      {},
	ServiceInsurance:        {},
}

// IsValid reports whether s is one of the known service types.
func (s ServiceType) IsValid() bool {
	_, ok := serviceTypes[s]
	return ok
}

// ParseServiceType normalizes and validates a raw service type string.
func ParseServiceType(raw string) (ServiceType, error) {
	s := ServiceType(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown service type %q", raw)
	}
	return s, nil
}
