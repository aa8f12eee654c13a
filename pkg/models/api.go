package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// ListScansResponse lists the scan CSV files, most recent first.
type ListScansResponse struct {
	Body struct {
		Files []string `json:"files" doc:"Scan file names, newest first"`
	}
}

// GetScanDataRequest asks for the contents of one scan file.
type GetScanDataRequest struct {
	Filename string `path:"filename" doc:"Scan CSV file name"`
}

// ScanDataBody carries the points of a scan plus the current marker table.
type ScanDataBody struct {
	Headers []string     `json:"headers" doc:"Column names of the data rows"`
	Data    []TracePoint `json:"data" doc:"Scan trace points"`
	Markers []Marker     `json:"markers" doc:"Marker table rows"`
}

// GetScanDataResponse returns scan data in the shared scan payload shape.
type GetScanDataResponse struct {
	Body ScanDataBody
}

// GetMarkersResponse returns the marker table.
type GetMarkersResponse struct {
	Body struct {
		Markers []Marker `json:"markers" doc:"Marker table rows"`
	}
}

// CreateSessionRequest creates a new scan session.
type CreateSessionRequest struct {
	Body struct {
		Name         string  `json:"name" minLength:"1" maxLength:"80" required:"true" doc:"Scan name, used as the output file prefix"`
		StartFreqMHz float64 `json:"start_freq_mhz" minimum:"0" required:"true" doc:"Sweep start frequency in MHz"`
		StopFreqMHz  float64 `json:"stop_freq_mhz" minimum:"0" required:"true" doc:"Sweep stop frequency in MHz"`
		RBWHz        float64 `json:"rbw_hz" minimum:"1" required:"true" doc:"Resolution bandwidth in Hz"`
		OffsetHz     float64 `json:"offset_hz" doc:"Frequency offset applied by an external converter, in Hz"`
		HoldCount    int     `json:"hold_count" minimum:"0" doc:"Max-hold sweeps per segment"`
	}
}

// CreateSessionResponse returns the created session.
type CreateSessionResponse struct {
	Body struct {
		ID     string `json:"id" doc:"Session unique identifier"`
		Status string `json:"status" doc:"Initial session status"`
	}
}

// SessionRequest identifies a session by path parameter.
type SessionRequest struct {
	ID string `path:"id" doc:"Session ID"`
}

// SessionStatusBody is the status payload of a scan session.
type SessionStatusBody struct {
	ID         string  `json:"id" doc:"Session ID"`
	Name       string  `json:"name" doc:"Scan name"`
	Status     string  `json:"status" enum:"pending,running,paused,completed,failed" doc:"Session status"`
	Progress   int     `json:"progress" minimum:"0" maximum:"100" doc:"Sweep progress percentage"`
	Message    string  `json:"message,omitempty" doc:"Human-readable status message"`
	ResultFile *string `json:"result_file,omitempty" doc:"Result CSV file name once completed"`
}

// GetSessionResponse returns session status.
type GetSessionResponse struct {
	Body SessionStatusBody
}

// ListSessionsRequest limits the session listing.
type ListSessionsRequest struct {
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum sessions returned"`
}

// ListSessionsResponse returns recent sessions, newest first.
type ListSessionsResponse struct {
	Body struct {
		Sessions []SessionStatusBody `json:"sessions" doc:"Scan sessions, most recent first"`
	}
}

// ArchiveURLResponse returns a presigned download link for an archived scan.
type ArchiveURLResponse struct {
	Body struct {
		URL string `json:"url" doc:"Presigned download URL, valid for 24 hours"`
		Key string `json:"key" doc:"Object key of the archived scan"`
	}
}

// SessionControlResponse acknowledges a start/pause/resume/stop request.
type SessionControlResponse struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation message"`
	}
}

// IntermodRequest asks for IMD products over a set of zones.
type IntermodRequest struct {
	Body struct {
		Zones            map[string]Zone `json:"zones" required:"true" doc:"Zone name to emitters and position"`
		Include3rdOrder  bool            `json:"include_3rd_order" doc:"Include 2f1-f2 and 2f2-f1 products"`
		Include5thOrder  bool            `json:"include_5th_order" doc:"Include 3f1-2f2 and 3f2-2f1 products"`
		IncludeCrossZone bool            `json:"include_cross_zone" doc:"Include products between zones within the distance limit"`
		InBandLowMHz     float64         `json:"in_band_low_mhz" doc:"Lower in-band bound in MHz, 0 disables the band filter"`
		InBandHighMHz    float64         `json:"in_band_high_mhz" doc:"Upper in-band bound in MHz, 0 disables the band filter"`
	}
}

// IntermodResponse returns the computed products sorted by frequency.
type IntermodResponse struct {
	Body struct {
		Products []IMDProduct `json:"products" doc:"IMD products sorted by resulting frequency"`
		Count    int          `json:"count" doc:"Number of products"`
	}
}

// AverageRequest runs the averaging engine over named scan files.
type AverageRequest struct {
	Body struct {
		Files      []string `json:"files" minItems:"1" required:"true" doc:"Scan CSV file names in the scan data folder"`
		Statistics []string `json:"statistics" minItems:"1" required:"true" doc:"Requested statistics, e.g. Average, Median, PSD (dBm/Hz)"`
		Prefix     string   `json:"prefix" minLength:"1" required:"true" doc:"Output folder and file name prefix"`
	}
}

// AverageResponse reports where the aggregated CSVs were written.
type AverageResponse struct {
	Body struct {
		OutputDir  string   `json:"output_dir" doc:"Folder holding the generated CSVs"`
		Statistics []string `json:"statistics" doc:"Statistics actually computed"`
		Points     int      `json:"points" doc:"Number of points on the master frequency axis"`
	}
}
