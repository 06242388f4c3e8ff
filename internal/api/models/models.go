// Package models defines the request and response bodies of the control API.
package models

// HealthData is the health check payload.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

// HealthResponse wraps the health check payload.
type HealthResponse struct {
	Body HealthData
}

// VersionData is the build metadata payload.
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" doc:"Git commit hash"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	GoVersion string `json:"go_version" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Build platform"`
}

// VersionResponse wraps the build metadata payload.
type VersionResponse struct {
	Body VersionData
}

// StatusData describes the capture/replay session.
type StatusData struct {
	Capturing      bool    `json:"capturing" doc:"Whether live capture is running"`
	Connection     string  `json:"connection" example:"Connection1" doc:"Connection display name"`
	Interface      string  `json:"interface" example:"virtual" doc:"Adapter driver name"`
	Channel        string  `json:"channel" example:"vcan0" doc:"Bus channel"`
	BufferLen      int     `json:"buffer_len" doc:"Records currently in the trace buffer"`
	BufferCap      int     `json:"buffer_cap" doc:"Trace buffer capacity"`
	TotalWritten   uint64  `json:"total_written" doc:"Records appended this session"`
	PlayerState    string  `json:"player_state" example:"stopped" doc:"Replay state"`
	PlayerPosition float64 `json:"player_position" doc:"Replay position in seconds"`
	LoadedTrace    string  `json:"loaded_trace,omitempty" doc:"Path of the loaded trace file"`
	LoadedRecords  int     `json:"loaded_records" doc:"Records loaded into the player"`
	Drivers        []string `json:"drivers" doc:"Registered bus adapter drivers"`
}

// StatusResponse wraps the session status payload.
type StatusResponse struct {
	Body StatusData
}

// ActionData is the generic acknowledgement payload for control actions.
type ActionData struct {
	Success bool   `json:"success" doc:"Whether the action was applied"`
	Message string `json:"message,omitempty" doc:"Human-readable detail"`
}

// ActionResponse wraps a control action acknowledgement.
type ActionResponse struct {
	Body ActionData
}

// SendInput is a frame transmission request.
type SendInput struct {
	Body struct {
		ID       string `json:"id" example:"123" doc:"Arbitration identifier, hex"`
		Data     string `json:"data" example:"01 02 03 04" doc:"Payload bytes, hex, space-separated"`
		Extended bool   `json:"extended,omitempty" doc:"29-bit identifier"`
		FD       bool   `json:"fd,omitempty" doc:"CAN FD frame"`
	}
}

// TracePathInput carries a trace file path.
type TracePathInput struct {
	Body struct {
		Path string `json:"path" example:"/var/lib/canscope/trace_001.trc" doc:"Trace file path"`
	}
}

// TraceLoadData reports the result of loading a trace file.
type TraceLoadData struct {
	Path     string  `json:"path" doc:"Trace file path"`
	Records  int     `json:"records" doc:"Records loaded"`
	Duration float64 `json:"duration" doc:"Trace duration in seconds"`
}

// TraceLoadResponse wraps the trace load result.
type TraceLoadResponse struct {
	Body TraceLoadData
}

// TraceSaveData reports the result of saving a buffer snapshot.
type TraceSaveData struct {
	Path    string `json:"path" doc:"Trace file path"`
	Records int    `json:"records" doc:"Records written"`
}

// TraceSaveResponse wraps the trace save result.
type TraceSaveResponse struct {
	Body TraceSaveData
}

// PlayInput starts or resumes replay.
type PlayInput struct {
	Body struct {
		Speed   float64 `json:"speed,omitempty" example:"1" doc:"Speed multiplier; 0 selects maximum speed"`
		Capture bool    `json:"capture,omitempty" doc:"Record the replayed stream into the trace buffer"`
	}
}

// SeekInput repositions the replay cursor.
type SeekInput struct {
	Body struct {
		Position float64 `json:"position" example:"12.5" doc:"Target offset in seconds"`
	}
}

// PlayerData reports the replay engine state.
type PlayerData struct {
	State    string  `json:"state" example:"playing" doc:"Replay state"`
	Position float64 `json:"position" doc:"Replay position in seconds"`
	Records  int     `json:"records" doc:"Records loaded"`
}

// PlayerResponse wraps the replay engine state.
type PlayerResponse struct {
	Body PlayerData
}

// RecordData is one trace buffer record.
type RecordData struct {
	Seq    uint64  `json:"seq" doc:"Session sequence number"`
	Offset float64 `json:"offset" doc:"Offset from session start in seconds"`
	ID     string  `json:"id" example:"123" doc:"Arbitration identifier, hex"`
	Dir    string  `json:"dir" example:"Rx" doc:"Direction token"`
	Kind   string  `json:"kind" example:"Data" doc:"Frame kind"`
	DLC    int     `json:"dlc" doc:"Data length"`
	Data   string  `json:"data" doc:"Payload bytes, hex, or error kind for error frames"`
}

// RecordsData is a page of trace buffer records.
type RecordsData struct {
	Total   int          `json:"total" doc:"Records in the snapshot"`
	Offset  int          `json:"offset" doc:"Page start index"`
	Records []RecordData `json:"records" doc:"Records in this page"`
}

// RecordsResponse wraps a page of trace buffer records.
type RecordsResponse struct {
	Body RecordsData
}

// StrategiesData lists the available seed-key strategies.
type StrategiesData struct {
	Strategies []string `json:"strategies" doc:"Registered strategy names"`
}

// StrategiesResponse wraps the strategy list.
type StrategiesResponse struct {
	Body StrategiesData
}

// ComputeKeyInput is a seed-key computation request.
type ComputeKeyInput struct {
	Body struct {
		Strategy string `json:"strategy" example:"xor" doc:"Strategy name"`
		Seed     string `json:"seed" example:"11 22 33 44" doc:"Seed bytes, hex, space-separated"`
		Level    int    `json:"level" example:"1" doc:"Security access level"`
	}
}

// ComputeKeyData is the derived key.
type ComputeKeyData struct {
	Key string `json:"key" example:"B4 87 96 E1" doc:"Key bytes, hex, space-separated"`
}

// ComputeKeyResponse wraps the derived key.
type ComputeKeyResponse struct {
	Body ComputeKeyData
}
