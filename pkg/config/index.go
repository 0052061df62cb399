package config

import (
	"strings"

	"github.com/chrissnell/tempoaqi/pkg/aqi"
)

// Params converts the index section into calculator parameters. Zero
// values keep the calculator defaults.
func (i IndexData) Params() aqi.Params {
	p := aqi.DefaultParams()

	if strings.EqualFold(i.Locale, string(aqi.English)) {
		p.Locale = aqi.English
	}

	// Weights are overridden as a group so a partial override cannot
	// silently mix with the defaults.
	if i.WeightNO2 != 0 || i.WeightHCHO != 0 || i.WeightO3 != 0 {
		p.Weights = aqi.Weights{NO2: i.WeightNO2, HCHO: i.WeightHCHO, O3: i.WeightO3}
	}

	if i.StratosphereLow != 0 {
		p.StratosphereLow = i.StratosphereLow
	}
	if i.StratosphereHigh != 0 {
		p.StratosphereHigh = i.StratosphereHigh
	}
	if i.StratospherePenalty != 0 {
		p.StratospherePenalty = i.StratospherePenalty
	}
	if i.SynergyThreshold != 0 {
		p.SynergyThreshold = i.SynergyThreshold
	}
	if i.SynergyCount != 0 {
		p.SynergyCount = i.SynergyCount
	}
	if i.SynergyFactor != 0 {
		p.SynergyFactor = i.SynergyFactor
	}

	if i.NO2 != nil {
		p.Tables.NO2 = i.NO2.table()
	}
	if i.HCHO != nil {
		p.Tables.HCHO = i.HCHO.table()
	}
	if i.O3 != nil {
		p.Tables.O3 = i.O3.table()
	}
	return p
}

func (t *StepTableData) table() aqi.StepTable {
	out := aqi.StepTable{Above: t.Above}
	for _, s := range t.Steps {
		out.Steps = append(out.Steps, aqi.Step{Below: s.Below, SubIndex: s.SubIndex})
	}
	return out
}

func (t *BandTableData) table() aqi.BandTable {
	out := aqi.BandTable{Outside: t.Outside}
	for _, b := range t.Bands {
		out.Bands = append(out.Bands, aqi.Band{Low: b.Low, High: b.High, SubIndex: b.SubIndex})
	}
	return out
}
