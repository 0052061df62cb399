package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chrissnell/tempoaqi/internal/app"
	"github.com/chrissnell/tempoaqi/internal/log"
	"github.com/chrissnell/tempoaqi/internal/types"
)

var (
	probeFile      string
	probePollutant string
	probeLat       float64
	probeLon       float64
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Extract and score a local NetCDF granule at one coordinate",
	Example: "  tempoaqi probe --file TEMPO_NO2_L3_V03_20240220T140000Z_S005.nc " +
		"--pollutant NO2 --lat 19.43 --lon -99.13",
	RunE: func(cmd *cobra.Command, args []string) error {
		pollutant := types.Pollutant(strings.ToUpper(probePollutant))
		if !pollutant.Valid() {
			return fmt.Errorf("unknown pollutant %q; use NO2, HCHO or O3", probePollutant)
		}

		cfgData, err := setup()
		if err != nil {
			return err
		}

		res, err := app.New(cfgData, log.GetSugaredLogger()).Probe(probeFile, pollutant, probeLat, probeLon)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeFile, "file", "", "NetCDF granule to read (required)")
	probeCmd.Flags().StringVar(&probePollutant, "pollutant", "NO2", "Pollutant the granule holds: NO2, HCHO or O3")
	probeCmd.Flags().Float64Var(&probeLat, "lat", 0, "Latitude in degrees")
	probeCmd.Flags().Float64Var(&probeLon, "lon", 0, "Longitude in degrees")
	probeCmd.MarkFlagRequired("file")
}
