package geo

// Unit is the distance unit used in the workspace configuration and in
// distance literals like "5km" (spec §4.1, §6).
type Unit string

const (
	UnitMeters     Unit = "m"
	UnitKilometers Unit = "km"
	UnitMiles      Unit = "mi"
	UnitFeet       Unit = "ft"
)

// Validity selects how the Builder treats repairable geometry defects
// (spec §4.1).
type Validity string

const (
	ValidityStrict  Validity = "strict"
	ValidityLenient Validity = "lenient"
)

// metersPerUnit converts 1 unit into meters.
var metersPerUnit = map[Unit]float64{
	UnitMeters:     1.0,
	UnitKilometers: 1000.0,
	UnitMiles:      1609.344,
	UnitFeet:       0.3048,
}

// ToMeters converts a distance value expressed in unit into meters.
func ToMeters(value float64, unit Unit) float64 {
	return value * metersPerUnit[unit]
}

// FromMeters converts a distance in meters into the given unit.
func FromMeters(meters float64, unit Unit) float64 {
	factor := metersPerUnit[unit]
	if factor == 0 {
		return meters
	}
	return meters / factor
}
