package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/praetorian-inc/vectorscan-go/pkg/scanner"
	"go.uber.org/zap"
)

// Version is the server protocol version
const Version = "1.1.0"

// Server manages the streaming scanner
type Server struct {
	core    *scanner.Core
	encoder *json.Encoder
	decoder *json.Decoder
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new streaming server
func NewServer(core *scanner.Core, in io.Reader, out io.Writer, opts ...Option) *Server {
	s := &Server{
		core:    core,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the server main loop. Streams left open when the loop exits
// stay registered with the core; closing the core aborts them.
func (s *Server) Run(ctx context.Context) error {
	// Send ready signal
	s.sendReady()

	// Use buffered channels for incoming requests
	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Process requests until stdin closes or context cancels
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(req) {
						return nil
					}
				default:
					// No more pending requests
					if err == io.EOF {
						return nil
					}
					s.logger.Warn("malformed request", zap.Error(err))
					s.sendError("decode", err.Error())
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(req Request) bool {
	s.logger.Debug("request", zap.String("type", req.Type))
	switch req.Type {
	case TypeScan:
		s.handleScan(req.Payload)
	case TypeScanBatch:
		s.handleScanBatch(req.Payload)
	case TypeStreamOpen:
		s.handleStreamOpen()
	case TypeStreamWrite:
		s.handleStreamWrite(req.Payload)
	case TypeStreamClose:
		s.handleStreamClose(req.Payload)
	case TypeClose:
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) sendReady() {
	s.send("ready", ReadyData{
		Version:       Version,
		EngineVersion: hs.Version(),
		Rules:         len(s.core.Engine().Rules()),
	})
}

func (s *Server) handleScan(payload json.RawMessage) {
	var p ScanPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeScan, err.Error())
		return
	}

	result, err := s.core.Scan(p.Content, p.Source)
	if err != nil {
		s.sendError(TypeScan, err.Error())
		return
	}
	s.send(TypeScan, result)
}

func (s *Server) handleScanBatch(payload json.RawMessage) {
	var p ScanBatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeScanBatch, err.Error())
		return
	}

	result, err := s.core.ScanBatch(p.Items)
	if err != nil {
		s.sendError(TypeScanBatch, err.Error())
		return
	}
	s.send(TypeScanBatch, result)
}

func (s *Server) handleStreamOpen() {
	id, err := s.core.OpenStream()
	if err != nil {
		s.sendError(TypeStreamOpen, err.Error())
		return
	}
	s.send(TypeStreamOpen, StreamOpenData{StreamID: id})
}

func (s *Server) handleStreamWrite(payload json.RawMessage) {
	var p StreamWritePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeStreamWrite, err.Error())
		return
	}

	result, err := s.core.WriteStream(p.StreamID, p.Content)
	if err != nil {
		s.sendError(TypeStreamWrite, err.Error())
		return
	}
	s.send(TypeStreamWrite, result)
}

func (s *Server) handleStreamClose(payload json.RawMessage) {
	var p StreamClosePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeStreamClose, err.Error())
		return
	}

	result, err := s.core.CloseStream(p.StreamID)
	if err != nil {
		s.sendError(TypeStreamClose, err.Error())
		return
	}
	s.send(TypeStreamClose, result)
}

func (s *Server) send(respType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.sendError(respType, err.Error())
		return
	}
	if err := s.encoder.Encode(Response{Success: true, Type: respType, Data: data}); err != nil {
		s.logger.Warn("failed to write response", zap.String("type", respType), zap.Error(err))
	}
}

func (s *Server) sendError(reqType, msg string) {
	err := s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	})
	if err != nil {
		s.logger.Warn("failed to write response", zap.String("type", reqType), zap.Error(err))
	}
}
