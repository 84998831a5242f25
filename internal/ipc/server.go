package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/austinkregel/dualscope/internal/config"
	"github.com/austinkregel/dualscope/internal/engine"
	"github.com/austinkregel/dualscope/internal/types"
)

// Server handles IPC communication between the measurement engine and its
// clients over a Unix domain socket.
type Server struct {
	socketPath string
	configMgr  *config.Manager
	eng        *engine.Engine
	listener   net.Listener
	mu         sync.Mutex
	clients    map[net.Conn]struct{}
}

// NewServer creates a new IPC server bound to an existing Engine.
func NewServer(socketPath string, configMgr *config.Manager, eng *engine.Engine) *Server {
	return &Server{
		socketPath: socketPath,
		configMgr:  configMgr,
		eng:        eng,
		clients:    make(map[net.Conn]struct{}),
	}
}

// Start binds the Unix socket, accepts connections until ctx is cancelled,
// and then tears down the listener and any open connections.
func (s *Server) Start(ctx context.Context) error {
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	log.Printf("[IPC] Creating socket at %s", s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("[IPC] Server listening, waiting for connections...")

	go s.acceptLoop(ctx)

	<-ctx.Done()

	log.Printf("[IPC] Shutting down server...")

	s.mu.Lock()
	clientCount := len(s.clients)
	for conn := range s.clients {
		conn.Close()
	}
	s.mu.Unlock()

	log.Printf("[IPC] Closed %d client connections", clientCount)

	listener.Close()
	os.RemoveAll(s.socketPath)

	log.Printf("[IPC] Server stopped")
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("[IPC] Accept error: %v", err)
				continue
			}
		}

		s.mu.Lock()
		s.clients[conn] = struct{}{}
		clientCount := len(s.clients)
		s.mu.Unlock()

		log.Printf("[IPC] New client connection, active clients: %d", clientCount)

		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.mu.Unlock()
		log.Printf("[IPC] Client disconnected, active clients: %d", clientCount)
	}()

	reader := bufio.NewReader(conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("[IPC] Read error: %v", err)
			}
			return
		}

		req, err := DecodeRequest(line)
		if err != nil {
			s.sendError(conn, "invalid request format")
			continue
		}
		RequestLogger(req)

		start := time.Now()
		resp := s.handleRequest(req)
		ResponseLogger(resp, time.Since(start))

		if err := s.sendResponse(conn, resp); err != nil {
			log.Printf("[IPC] Send error: %v", err)
			return
		}
	}
}

func (s *Server) handleRequest(req *Request) *Response {
	s.eng.Mu.Lock()
	defer s.eng.Mu.Unlock()

	switch req.Cmd {
	case CmdPushSamples:
		return s.handlePushSamples(req)
	case CmdProcessBlock:
		return s.handleProcessBlock(req)
	case CmdStatus:
		return s.handleStatus()
	case CmdGetConfig:
		return s.handleGetConfig()
	case CmdSetConfig:
		return s.handleSetConfig(req)
	case CmdGetTransferFunction:
		return s.handleGetTransferFunction(req)
	case CmdGetTransferFunctionMTW:
		return s.handleGetTransferFunctionMTW(req)
	case CmdGetRTA:
		return s.handleGetRTA(req)
	case CmdComputeAutoDelay:
		return s.handleComputeAutoDelay()
	case CmdGetImpulseResponse:
		return s.handleGetImpulseResponse()
	case CmdGetAcousticMetrics:
		return s.handleGetAcousticMetrics()
	case CmdSetPhaseOffset:
		return s.handleSetPhaseOffset(req)
	case CmdResetAveraging:
		return s.handleResetAveraging()
	case CmdStartSweepCapture:
		return s.handleStartSweepCapture()
	case CmdStopSweepCapture:
		return s.handleStopSweepCapture()
	default:
		return NewErrorResponse("unknown command")
	}
}

func (s *Server) handlePushSamples(req *Request) *Response {
	var data PushSamplesRequest
	if err := json.Unmarshal(req.Data, &data); err != nil {
		return NewErrorResponse("invalid pushSamples data")
	}
	if err := s.eng.PushSamples(data.Ref, data.Meas); err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, _ := NewSuccessResponse(nil)
	return resp
}

func (s *Server) handleProcessBlock(req *Request) *Response {
	var data ProcessBlockRequest
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return NewErrorResponse("invalid processBlock data")
		}
	}

	processed := false
	if data.MTW {
		s.eng.ProcessAllMTW()
		processed = true
	} else {
		n := data.N
		if n == 0 {
			n = s.eng.PrimaryFFTSize()
		}
		processed = s.eng.ProcessBlock(n)
	}

	resp, _ := NewSuccessResponse(ProcessBlockResponse{Processed: processed})
	return resp
}

func (s *Server) handleStatus() *Response {
	resp, _ := NewSuccessResponse(StatusResponse{
		SampleRate:          s.eng.SampleRate(),
		PrimaryFFTSize:      s.eng.PrimaryFFTSize(),
		CurrentDelaySamples: s.eng.CurrentDelaySamples,
		PhaseOffsetMs:       s.eng.PhaseOffsetMs,
		AcousticMetrics:     s.eng.AcousticMetrics(),
	})
	return resp
}

func (s *Server) handleGetConfig() *Response {
	cfg := s.configMgr.Get()
	resp, _ := NewSuccessResponse(cfg)
	return resp
}

func (s *Server) handleSetConfig(req *Request) *Response {
	var data ConfigRequest
	if err := json.Unmarshal(req.Data, &data); err != nil {
		return NewErrorResponse("invalid setConfig data")
	}

	cfg := s.configMgr.Get()
	if data.Window != nil {
		cfg.Analysis.Window = *data.Window
		s.eng.SetWindow(types.ParseWindowKind(*data.Window))
	}
	if data.Averaging != nil {
		cfg.Analysis.Averaging = *data.Averaging
	}
	if data.AveragingCount != nil {
		cfg.Analysis.AveragingCount = *data.AveragingCount
	}
	if data.Averaging != nil || data.AveragingCount != nil {
		if err := s.eng.SetAveraging(types.ParseAveragingKind(cfg.Analysis.Averaging), cfg.Analysis.AveragingCount); err != nil {
			return NewErrorResponse(err.Error())
		}
	}
	if data.PrimaryFFTSize != nil {
		if err := s.eng.SetPrimaryFFTSize(*data.PrimaryFFTSize); err != nil {
			return NewErrorResponse(err.Error())
		}
		cfg.Analysis.PrimaryFFTSize = *data.PrimaryFFTSize
	}

	if err := s.configMgr.Update(cfg); err != nil {
		return NewErrorResponse(err.Error())
	}

	resp, _ := NewSuccessResponse(cfg)
	return resp
}

func (s *Server) handleGetTransferFunction(req *Request) *Response {
	var data GetTransferFunctionRequest
	if len(req.Data) > 0 {
		json.Unmarshal(req.Data, &data)
	}
	tf := s.eng.TransferFunction(types.ParseSmoothingKind(data.Smoothing))
	resp, _ := NewSuccessResponse(tf)
	return resp
}

func (s *Server) handleGetTransferFunctionMTW(req *Request) *Response {
	var data GetTransferFunctionRequest
	if len(req.Data) > 0 {
		json.Unmarshal(req.Data, &data)
	}
	tf := s.eng.TransferFunctionMTW(types.ParseSmoothingKind(data.Smoothing))
	resp, _ := NewSuccessResponse(tf)
	return resp
}

func (s *Server) handleGetRTA(req *Request) *Response {
	var data GetRTARequest
	if err := json.Unmarshal(req.Data, &data); err != nil {
		return NewErrorResponse("invalid getRTA data")
	}
	mag := s.eng.RTA(types.ParseSmoothingKind(data.Smoothing), data.Channel == "ref", data.VisualGainDB)
	resp, _ := NewSuccessResponse(RTAResponse{MagnitudeDB: mag})
	return resp
}

func (s *Server) handleComputeAutoDelay() *Response {
	result := s.eng.ComputeAutoDelay()
	resp, _ := NewSuccessResponse(result)
	return resp
}

func (s *Server) handleGetImpulseResponse() *Response {
	resp, _ := NewSuccessResponse(ImpulseResponseResponse{Samples: s.eng.LastImpulseResponse()})
	return resp
}

func (s *Server) handleGetAcousticMetrics() *Response {
	resp, _ := NewSuccessResponse(s.eng.AcousticMetrics())
	return resp
}

func (s *Server) handleSetPhaseOffset(req *Request) *Response {
	var data SetPhaseOffsetRequest
	if err := json.Unmarshal(req.Data, &data); err != nil {
		return NewErrorResponse("invalid setPhaseOffset data")
	}
	s.eng.PhaseOffsetMs = data.Ms
	if err := s.configMgr.SetPhaseOffset(data.Ms); err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, _ := NewSuccessResponse(nil)
	return resp
}

func (s *Server) handleResetAveraging() *Response {
	s.eng.ResetAveraging()
	resp, _ := NewSuccessResponse(nil)
	return resp
}

func (s *Server) handleStartSweepCapture() *Response {
	s.eng.StartSweepCapture()
	resp, _ := NewSuccessResponse(nil)
	return resp
}

func (s *Server) handleStopSweepCapture() *Response {
	peak := s.eng.StopSweepCapture()
	resp, _ := NewSuccessResponse(StopSweepCaptureResponse{PeakDB: peak})
	return resp
}

func (s *Server) sendResponse(conn net.Conn, resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}

func (s *Server) sendError(conn net.Conn, msg string) {
	s.sendResponse(conn, NewErrorResponse(msg))
}
