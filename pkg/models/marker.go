package models

// Marker is one row of MARKERS.CSV: a tracked device with its center
// frequency and last observed peak.
type Marker struct {
	Zone    string   `json:"zone" doc:"Spatial zone the device belongs to"`
	Group   string   `json:"group" doc:"Logical device group"`
	Name    string   `json:"name" doc:"Marker label"`
	Device  string   `json:"device" doc:"Device identifier"`
	FreqMHz float64  `json:"freq_mhz" doc:"Center frequency in MHz"`
	PeakDBm *float64 `json:"peak_dbm,omitempty" doc:"Last observed peak amplitude in dBm"`
}

// Emitter is a transmit frequency owned by a named device.
type Emitter struct {
	FreqMHz float64 `json:"freq_mhz" doc:"Transmit frequency in MHz"`
	Device  string  `json:"device" doc:"Device identifier"`
}

// Zone is a named physical area grouping emitters, with a 2D position used to
// gate cross-zone intermod analysis by distance.
type Zone struct {
	Emitters []Emitter `json:"emitters" doc:"Emitters located in the zone"`
	X        float64   `json:"x" doc:"Zone position X in meters"`
	Y        float64   `json:"y" doc:"Zone position Y in meters"`
}

// IMD product types.
const (
	IMDIntraZone = "Intra-Zone"
	IMDCrossZone = "Cross-Zone"
)

// IMDProduct is one intermodulation product computed for a pair of emitters.
type IMDProduct struct {
	Zone1       string  `json:"zone_1" doc:"Zone of the first parent emitter"`
	Zone2       string  `json:"zone_2" doc:"Zone of the second parent emitter"`
	Type        string  `json:"type" enum:"Intra-Zone,Cross-Zone" doc:"Whether the parents share a zone"`
	Order       string  `json:"order" enum:"2f1-f2,2f2-f1,3f1-2f2,3f2-2f1" doc:"Combinatorial formula that produced this frequency"`
	DistanceM   float64 `json:"distance_m" doc:"Distance between the parent zones in meters, 0 for intra-zone"`
	FreqMHz     float64 `json:"freq_mhz" doc:"Resulting product frequency in MHz"`
	Severity    string  `json:"severity" enum:"High,Medium,Low" doc:"Static severity by order"`
	Device1     string  `json:"device_1" doc:"First parent device"`
	Device2     string  `json:"device_2" doc:"Second parent device"`
	ParentFreq1 float64 `json:"parent_freq_1" doc:"First parent frequency in MHz"`
	ParentFreq2 float64 `json:"parent_freq_2" doc:"Second parent frequency in MHz"`
}
