package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/canscope/canscope/internal/api/models"
	"github.com/canscope/canscope/internal/canbus"
	"github.com/canscope/canscope/internal/frame"
	"github.com/canscope/canscope/internal/player"
	"github.com/canscope/canscope/internal/seckey"
	"github.com/canscope/canscope/internal/session"
	"github.com/canscope/canscope/internal/trc"
	"github.com/canscope/canscope/internal/version"
)

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	// Health check endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	// Version endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerStatusRoutes()
	s.registerCaptureRoutes()
	s.registerPlayerRoutes()
	s.registerTraceRoutes()
	s.registerSeckeyRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Session status",
		Description: "Get capture, buffer and replay state",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		st := s.session.Status()
		return &models.StatusResponse{
			Body: models.StatusData{
				Capturing:      st.Capturing,
				Connection:     st.Connection,
				Interface:      st.Interface,
				Channel:        st.Channel,
				BufferLen:      st.BufferLen,
				BufferCap:      st.BufferCap,
				TotalWritten:   st.TotalWritten,
				PlayerState:    st.PlayerState,
				PlayerPosition: st.PlayerPosition,
				LoadedTrace:    st.LoadedTrace,
				LoadedRecords:  st.LoadedRecords,
				Drivers:        canbus.Drivers(),
			},
		}, nil
	})
}

func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-capture",
		Method:      http.MethodPost,
		Path:        "/api/capture/start",
		Summary:     "Start capture",
		Description: "Open the bus adapter and record live traffic into a fresh buffer session",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(ctx context.Context, input *struct{}) (*models.ActionResponse, error) {
		if err := s.session.StartCapture(); err != nil {
			return nil, sessionError(err)
		}
		return ack("capture started"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-capture",
		Method:      http.MethodPost,
		Path:        "/api/capture/stop",
		Summary:     "Stop capture",
		Description: "Stop the receive loop and close the bus adapter",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, input *struct{}) (*models.ActionResponse, error) {
		if err := s.session.StopCapture(); err != nil {
			return nil, sessionError(err)
		}
		return ack("capture stopped"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "send-frame",
		Method:      http.MethodPost,
		Path:        "/api/send",
		Summary:     "Send frame",
		Description: "Transmit a frame on the open bus connection",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409, 500},
	}, func(ctx context.Context, input *models.SendInput) (*models.ActionResponse, error) {
		id, err := strconv.ParseUint(strings.TrimSpace(input.Body.ID), 16, 32)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid arbitration id", err)
		}
		data, err := parseHexBytes(input.Body.Data)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid payload", err)
		}
		f := frame.Frame{
			ID:        uint32(id),
			Dir:       frame.Tx,
			Data:      data,
			Timestamp: time.Now(),
		}
		if input.Body.Extended {
			f.Flags |= frame.Extended
		}
		if input.Body.FD {
			f.Flags |= frame.FD
		}
		if err := f.Validate(); err != nil {
			return nil, huma.Error400BadRequest("invalid frame", err)
		}
		if err := s.session.Send(f); err != nil {
			return nil, sessionError(err)
		}
		return ack("frame sent"), nil
	})
}

func (s *Server) registerPlayerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "load-trace",
		Method:      http.MethodPost,
		Path:        "/api/player/load",
		Summary:     "Load trace",
		Description: "Read a TRC file into the replay engine",
		Tags:        []string{"player"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409},
	}, func(ctx context.Context, input *models.TracePathInput) (*models.TraceLoadResponse, error) {
		trace, err := s.session.LoadTrace(input.Body.Path)
		if err != nil {
			var parseErr *trc.ParseError
			if errors.As(err, &parseErr) {
				return nil, huma.Error400BadRequest("malformed trace file", err)
			}
			return nil, sessionError(err)
		}
		return &models.TraceLoadResponse{
			Body: models.TraceLoadData{
				Path:     input.Body.Path,
				Records:  len(trace.Records),
				Duration: trace.Duration().Seconds(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "play",
		Method:      http.MethodPost,
		Path:        "/api/player/play",
		Summary:     "Play",
		Description: "Start or resume replay; speed 0 selects maximum speed",
		Tags:        []string{"player"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409},
	}, func(ctx context.Context, input *models.PlayInput) (*models.PlayerResponse, error) {
		speed := input.Body.Speed
		if speed == 0 {
			speed = player.SpeedMax
		}
		if err := s.session.Play(speed, input.Body.Capture); err != nil {
			return nil, sessionError(err)
		}
		return s.playerResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "pause",
		Method:      http.MethodPost,
		Path:        "/api/player/pause",
		Summary:     "Pause",
		Description: "Freeze the replay at the current position",
		Tags:        []string{"player"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, input *struct{}) (*models.PlayerResponse, error) {
		if err := s.session.Pause(); err != nil {
			return nil, sessionError(err)
		}
		return s.playerResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "seek",
		Method:      http.MethodPost,
		Path:        "/api/player/seek",
		Summary:     "Seek",
		Description: "Reposition the replay to the first record at or after the target offset",
		Tags:        []string{"player"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, input *models.SeekInput) (*models.PlayerResponse, error) {
		target := time.Duration(input.Body.Position * float64(time.Second))
		if err := s.session.Seek(target); err != nil {
			return nil, sessionError(err)
		}
		return s.playerResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-player",
		Method:      http.MethodPost,
		Path:        "/api/player/stop",
		Summary:     "Stop",
		Description: "Stop the replay and discard the cursor",
		Tags:        []string{"player"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.PlayerResponse, error) {
		if err := s.session.StopPlayback(); err != nil {
			return nil, sessionError(err)
		}
		return s.playerResponse(), nil
	})
}

func (s *Server) registerTraceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "save-trace",
		Method:      http.MethodPost,
		Path:        "/api/trace/save",
		Summary:     "Save trace",
		Description: "Write a point-in-time snapshot of the trace buffer to a TRC file",
		Tags:        []string{"trace"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *models.TracePathInput) (*models.TraceSaveResponse, error) {
		n, err := s.session.SaveTrace(input.Body.Path)
		if err != nil {
			return nil, huma.Error500InternalServerError("save failed", err)
		}
		return &models.TraceSaveResponse{
			Body: models.TraceSaveData{Path: input.Body.Path, Records: n},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-trace-records",
		Method:      http.MethodGet,
		Path:        "/api/trace/records",
		Summary:     "Trace records",
		Description: "Page through a snapshot of the trace buffer, oldest first",
		Tags:        []string{"trace"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct {
		Offset int `query:"offset" minimum:"0" doc:"Page start index"`
		Limit  int `query:"limit" minimum:"1" maximum:"10000" default:"1000" doc:"Maximum records to return"`
	}) (*models.RecordsResponse, error) {
		snapshot := s.session.Buffer().Snapshot()
		total := len(snapshot)

		start := input.Offset
		if start > total {
			start = total
		}
		end := start + input.Limit
		if end > total {
			end = total
		}

		records := make([]models.RecordData, 0, end-start)
		for _, rec := range snapshot[start:end] {
			data := rec.Frame.DataString()
			if rec.Frame.IsError() {
				data = rec.Frame.ErrKind.String()
			}
			records = append(records, models.RecordData{
				Seq:    rec.Seq,
				Offset: rec.Offset.Seconds(),
				ID:     rec.Frame.IDString(),
				Dir:    rec.Frame.Dir.String(),
				Kind:   rec.Frame.Type(),
				DLC:    rec.Frame.DLC(),
				Data:   data,
			})
		}
		return &models.RecordsResponse{
			Body: models.RecordsData{Total: total, Offset: start, Records: records},
		}, nil
	})
}

func (s *Server) registerSeckeyRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-seckey-strategies",
		Method:      http.MethodGet,
		Path:        "/api/seckey/strategies",
		Summary:     "Seed-key strategies",
		Description: "List the compiled-in seed-key strategies",
		Tags:        []string{"seckey"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.StrategiesResponse, error) {
		return &models.StrategiesResponse{
			Body: models.StrategiesData{Strategies: seckey.Names()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "compute-seckey",
		Method:      http.MethodPost,
		Path:        "/api/seckey/compute",
		Summary:     "Compute key",
		Description: "Derive the security-access key for a seed challenge",
		Tags:        []string{"seckey"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *models.ComputeKeyInput) (*models.ComputeKeyResponse, error) {
		strategy, err := seckey.Get(input.Body.Strategy)
		if err != nil {
			return nil, huma.Error404NotFound(err.Error())
		}
		seed, err := parseHexBytes(input.Body.Seed)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid seed", err)
		}
		key, err := strategy.ComputeKey(seed, input.Body.Level)
		if err != nil {
			return nil, huma.Error400BadRequest("key computation failed", err)
		}
		return &models.ComputeKeyResponse{
			Body: models.ComputeKeyData{Key: frame.Frame{Data: key}.DataString()},
		}, nil
	})
}

func (s *Server) playerResponse() *models.PlayerResponse {
	p := s.session.Player()
	return &models.PlayerResponse{
		Body: models.PlayerData{
			State:    p.State().String(),
			Position: p.Position().Seconds(),
			Records:  p.Len(),
		},
	}
}

func ack(msg string) *models.ActionResponse {
	return &models.ActionResponse{Body: models.ActionData{Success: true, Message: msg}}
}

// sessionError maps session and player failures to HTTP status codes.
func sessionError(err error) error {
	var stateErr *player.StateError
	switch {
	case errors.Is(err, session.ErrCaptureRunning),
		errors.Is(err, session.ErrCaptureStopped),
		errors.Is(err, session.ErrPlayerActive),
		errors.Is(err, session.ErrNoTrace),
		errors.As(err, &stateErr):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, player.ErrInvalidSpeed):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError("operation failed", err)
	}
}

// parseHexBytes parses space-separated hex byte tokens; an empty string is a
// valid empty payload.
func parseHexBytes(s string) ([]byte, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	out := make([]byte, len(fields))
	for i, tok := range fields {
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("byte %d: %w", i, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}
