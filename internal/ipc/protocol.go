// Package ipc handles inter-process communication between the engine
// daemon and its clients over a newline-delimited JSON protocol.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/austinkregel/dualscope/internal/types"
)

// CommandType represents the type of command.
type CommandType string

const (
	CmdPushSamples            CommandType = "pushSamples"
	CmdProcessBlock           CommandType = "processBlock"
	CmdStatus                 CommandType = "status"
	CmdGetConfig              CommandType = "getConfig"
	CmdSetConfig              CommandType = "setConfig"
	CmdGetTransferFunction    CommandType = "getTransferFunction"
	CmdGetTransferFunctionMTW CommandType = "getTransferFunctionMTW"
	CmdGetRTA                 CommandType = "getRTA"
	CmdComputeAutoDelay       CommandType = "computeAutoDelay"
	CmdGetImpulseResponse     CommandType = "getImpulseResponse"
	CmdGetAcousticMetrics     CommandType = "getAcousticMetrics"
	CmdSetPhaseOffset         CommandType = "setPhaseOffset"
	CmdResetAveraging         CommandType = "resetAveraging"
	CmdStartSweepCapture      CommandType = "startSweepCapture"
	CmdStopSweepCapture       CommandType = "stopSweepCapture"
)

// PushMessage represents a server-initiated message (no request needed).
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request represents a client request.
type Request struct {
	Cmd  CommandType     `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response represents a server response.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// PushSamplesRequest is the data for a pushSamples command.
type PushSamplesRequest struct {
	Ref  []float32 `json:"ref"`
	Meas []float32 `json:"meas"`
}

// ProcessBlockRequest is the data for a processBlock command. If MTW is
// true, all Multi-Time-Window sizes (and the primary size) are processed;
// otherwise only N is processed.
type ProcessBlockRequest struct {
	N   int  `json:"n,omitempty"`
	MTW bool `json:"mtw,omitempty"`
}

// ProcessBlockResponse reports whether the requested block had enough
// buffered data to process. For an MTW request Processed is always true,
// whether or not any size had enough data.
type ProcessBlockResponse struct {
	Processed bool `json:"processed"`
}

// GetTransferFunctionRequest is the data for a getTransferFunction or
// getTransferFunctionMTW command.
type GetTransferFunctionRequest struct {
	Smoothing string `json:"smoothing,omitempty"`
}

// GetRTARequest is the data for a getRTA command.
type GetRTARequest struct {
	Smoothing    string  `json:"smoothing,omitempty"`
	Channel      string  `json:"channel"` // "ref" or "meas"
	VisualGainDB float64 `json:"visualGainDb,omitempty"`
}

// RTAResponse wraps the per-bin RTA dB curve.
type RTAResponse struct {
	MagnitudeDB []float32 `json:"magnitudeDb"`
}

// SetPhaseOffsetRequest is the data for a setPhaseOffset command.
type SetPhaseOffsetRequest struct {
	Ms float64 `json:"ms"`
}

// StopSweepCaptureResponse wraps the peak-held RTA curve.
type StopSweepCaptureResponse struct {
	PeakDB []float32 `json:"peakDb"`
}

// ImpulseResponseResponse wraps the peak-normalized impulse response from
// the most recent ComputeAutoDelay call.
type ImpulseResponseResponse struct {
	Samples []float32 `json:"samples"`
}

// StatusResponse is the response to a status command.
type StatusResponse struct {
	SampleRate          int                    `json:"sampleRate"`
	PrimaryFFTSize      int                    `json:"primaryFftSize"`
	CurrentDelaySamples float64                `json:"currentDelaySamples"`
	PhaseOffsetMs       float64                `json:"phaseOffsetMs"`
	AcousticMetrics     *types.AcousticMetrics `json:"acousticMetrics,omitempty"`
}

// ConfigRequest is the data for a setConfig command. All fields are
// optional; non-nil PrimaryFFTSize, Window, Averaging and AveragingCount
// are applied. SampleRate and BufferCapacitySamples are accepted but
// ignored.
type ConfigRequest struct {
	SampleRate            *int    `json:"sampleRate,omitempty"`
	BufferCapacitySamples *int    `json:"bufferCapacitySamples,omitempty"`
	PrimaryFFTSize        *int    `json:"primaryFftSize,omitempty"`
	Window                *string `json:"window,omitempty"`
	Averaging             *string `json:"averaging,omitempty"`
	AveragingCount        *int    `json:"averagingCount,omitempty"`
}

// EncodeRequest encodes a request to JSON.
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest decodes a request from JSON.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// EncodeResponse encodes a response to JSON.
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse decodes a response from JSON.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// NewPushMessage creates a push message for streaming data.
func NewPushMessage(msgType string, data interface{}) ([]byte, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	msg := PushMessage{
		Type: msgType,
		Data: rawData,
	}
	return json.Marshal(msg)
}
