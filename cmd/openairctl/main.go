// openairctl drives the spectrum tooling from the command line: one-shot
// sweeps, intermod calculation over a marker table, and offline averaging of
// stored scan CSVs.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/imd"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/instrument"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/scpi"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/stats"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/store"
	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

var rootCmd = &cobra.Command{
	Use:   "openairctl",
	Short: "Spectrum scan, intermod, and averaging tools.",
}

var (
	instrumentAddr string
	timeoutMS      int
	startMHz       float64
	stopMHz        float64
	rbwHz          float64
	outFile        string
	presetName     string
	presetsFile    string

	markersFile string
	include3rd  bool
	include5th  bool
	crossZone   bool
	bandLowMHz  float64
	bandHighMHz float64

	statNames []string
	outPrefix string
	scanDir   string
	debug     bool
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	scanCmd := &cobra.Command{
		Use:   "scan [flags]",
		Short: "Run one sweep and write a scan CSV",
		Run:   func(cmd *cobra.Command, args []string) { runScan() },
	}
	scanCmd.Flags().StringVarP(&instrumentAddr, "addr", "a", "127.0.0.1:5025", "Instrument SCPI address")
	scanCmd.Flags().IntVar(&timeoutMS, "timeout-ms", 5000, "Command timeout in milliseconds")
	scanCmd.Flags().Float64VarP(&startMHz, "start", "f", 400, "Start frequency in MHz")
	scanCmd.Flags().Float64VarP(&stopMHz, "stop", "t", 608, "Stop frequency in MHz")
	scanCmd.Flags().Float64VarP(&rbwHz, "rbw", "r", 10000, "Resolution bandwidth in Hz")
	scanCmd.Flags().StringVarP(&outFile, "out", "o", "scan.csv", "Output CSV file")
	scanCmd.Flags().StringVarP(&presetName, "preset", "p", "", "Preset nickname to apply before sweeping")
	scanCmd.Flags().StringVar(&presetsFile, "presets-file", "PRESETS.CSV", "Preset table CSV")
	rootCmd.AddCommand(scanCmd)

	intermodCmd := &cobra.Command{
		Use:   "intermod [flags]",
		Short: "Compute IMD products from a marker table",
		Run:   func(cmd *cobra.Command, args []string) { runIntermod() },
	}
	intermodCmd.Flags().StringVarP(&markersFile, "markers", "m", "MARKERS.CSV", "Marker table CSV")
	intermodCmd.Flags().BoolVar(&include3rd, "third", true, "Include 3rd order products")
	intermodCmd.Flags().BoolVar(&include5th, "fifth", false, "Include 5th order products")
	intermodCmd.Flags().BoolVar(&crossZone, "cross-zone", false, "Include cross-zone products")
	intermodCmd.Flags().Float64Var(&bandLowMHz, "band-low", 0, "In-band lower bound in MHz")
	intermodCmd.Flags().Float64Var(&bandHighMHz, "band-high", 0, "In-band upper bound in MHz")
	intermodCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write products to this CSV instead of stdout")
	rootCmd.AddCommand(intermodCmd)

	averageCmd := &cobra.Command{
		Use:   "average file.csv [file.csv...]",
		Short: "Aggregate scan CSVs into statistic columns",
		Args:  cobra.MinimumNArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { runAverage(args) },
	}
	averageCmd.Flags().StringSliceVarP(&statNames, "stats", "s", []string{stats.StatAverage}, "Statistics to compute")
	averageCmd.Flags().StringVarP(&outPrefix, "prefix", "p", "scan", "Output folder and file prefix")
	averageCmd.Flags().StringVarP(&scanDir, "dir", "d", ".", "Folder for the output subfolder")
	rootCmd.AddCommand(averageCmd)
}

func runScan() {
	logger := log.Logger
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	client, err := scpi.Dial(ctx, instrumentAddr, time.Duration(timeoutMS)*time.Millisecond, logger)
	if err != nil {
		log.Fatal().Err(err).Str("addr", instrumentAddr).Msg("cannot reach instrument")
	}
	defer client.Close()

	analyzer := instrument.NewAnalyzer(client, logger)
	if idn, err := analyzer.Identify(); err == nil {
		log.Info().Str("idn", idn).Msg("instrument connected")
	}

	if presetName != "" {
		presets, err := instrument.LoadPresets(presetsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", presetsFile).Msg("cannot load presets")
		}
		p, ok := instrument.FindPreset(presets, presetName)
		if !ok {
			log.Fatal().Str("preset", presetName).Msg("preset not found")
		}
		if err := analyzer.ApplyPreset(p, time.Duration(timeoutMS)*time.Millisecond); err != nil {
			log.Fatal().Err(err).Msg("preset push failed")
		}
		startMHz, stopMHz, rbwHz = p.StartMHz, p.StopMHz, p.RBWHz
	}

	win, err := analyzer.SetFreqWindow(startMHz*1e6, stopMHz*1e6)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot program frequency window")
	}
	if err := analyzer.SetRBW(rbwHz); err != nil {
		log.Fatal().Err(err).Msg("cannot program rbw")
	}
	if res := client.WaitOPC(time.Duration(timeoutMS) * time.Millisecond); res != scpi.OPCPassed {
		log.Fatal().Str("opc", string(res)).Msg("instrument did not settle")
	}

	points, err := analyzer.FetchTrace(1, win.StartHz, win.StopHz)
	if err != nil {
		log.Fatal().Err(err).Msg("trace fetch failed")
	}

	f, err := os.Create(outFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", outFile).Msg("cannot create output")
	}
	defer f.Close()
	for _, p := range points {
		fmt.Fprintf(f, "%.0f,%.3f\n", p.FrequencyHz, p.PowerDBm)
	}
	log.Info().Int("points", len(points)).Str("file", outFile).Msg("scan written")
}

func runIntermod() {
	markers, err := store.NewMarkerStore(markersFile).Load()
	if err != nil {
		log.Fatal().Err(err).Str("file", markersFile).Msg("cannot load markers")
	}
	zones := store.ZonesFromMarkers(markers)
	if len(zones) == 0 {
		log.Fatal().Str("file", markersFile).Msg("no zones in marker table")
	}

	products, err := imd.Products(zones, imd.Options{
		Include3rdOrder:  include3rd,
		Include5thOrder:  include5th,
		IncludeCrossZone: crossZone,
		InBandLowMHz:     bandLowMHz,
		InBandHighMHz:    bandHighMHz,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("intermod computation failed")
	}

	out := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", outFile).Msg("cannot create output")
		}
		defer f.Close()
		out = f
	}
	if err := imd.WriteCSV(out, products); err != nil {
		log.Fatal().Err(err).Msg("cannot write products")
	}
	summarizeProducts(products)
}

func summarizeProducts(products []models.IMDProduct) {
	bySeverity := map[string]int{}
	for _, p := range products {
		bySeverity[p.Severity]++
	}
	log.Info().Int("products", len(products)).
		Int("high", bySeverity["High"]).Int("medium", bySeverity["Medium"]).Int("low", bySeverity["Low"]).
		Msg("intermod done")
}

func runAverage(files []string) {
	res, outDir, err := stats.AverageScans(files, statNames, outPrefix, scanDir, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("averaging failed")
	}
	log.Info().Int("points", len(res.Frequencies)).
		Str("stats", strings.Join(res.Order, ", ")).
		Str("out_dir", outDir).Msg("averaging done")
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cobra.OnInitialize(func() {
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
