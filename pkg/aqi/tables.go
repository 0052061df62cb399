package aqi

// Step is one bucket of a step function: values strictly below Below map to SubIndex.
type Step struct {
	Below    float64
	SubIndex int
}

// StepTable is an ascending step function. Values at or above the last
// Below map to Above.
type StepTable struct {
	Steps []Step
	Above int
}

// Lookup returns the sub-index for v.
func (t StepTable) Lookup(v float64) int {
	for _, s := range t.Steps {
		if v < s.Below {
			return s.SubIndex
		}
	}
	return t.Above
}

// Band is an open interval (Low, High) mapped to SubIndex.
type Band struct {
	Low      float64
	High     float64
	SubIndex int
}

// BandTable checks nested bands from the innermost outward. Values outside
// every band map to Outside.
type BandTable struct {
	Bands   []Band
	Outside int
}

// Lookup returns the sub-index of the first band containing v.
func (t BandTable) Lookup(v float64) int {
	for _, b := range t.Bands {
		if v > b.Low && v < b.High {
			return b.SubIndex
		}
	}
	return t.Outside
}

// Tables holds the sub-index lookup tables for every pollutant.
type Tables struct {
	NO2  StepTable
	HCHO StepTable
	O3   BandTable
}

// DefaultTables returns the column-density thresholds in molecules/cm².
func DefaultTables() Tables {
	return Tables{
		NO2: StepTable{
			Steps: []Step{
				{5e14, 25},
				{1e15, 50},
				{2e15, 75},
				{4e15, 100},
				{7e15, 125},
				{1e16, 150},
				{1.5e16, 175},
				{2e16, 200},
				{3e16, 250},
				{5e16, 300},
			},
			Above: 400,
		},
		HCHO: StepTable{
			Steps: []Step{
				{5e14, 30},
				{1e15, 50},
				{2e15, 75},
				{3e15, 100},
				{5e15, 150},
				{8e15, 200},
				{1.2e16, 250},
				{1.5e16, 300},
			},
			Above: 400,
		},
		O3: BandTable{
			Bands: []Band{
				{7.5e18, 8.5e18, 50},
				{7e18, 9e18, 75},
				{6.5e18, 9.5e18, 100},
				{6e18, 1e19, 125},
			},
			Outside: 150,
		},
	}
}
