package detection

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"incident-worker-go/internal/models"
)

// DetectMethod is the unary method called on the inference server. Requests and
// responses are google.protobuf.Struct messages:
//
//	request:  {"camera_id": str, "frame_index": num, "width": num, "height": num, "image": base64 JPEG}
//	response: {"detections": [{"label": str, "confidence": num, "bbox": [x1, y1, x2, y2]}]}
const DetectMethod = "/detection.DetectionService/Detect"

// EncodeFunc turns a raw frame into the image bytes sent to the server.
type EncodeFunc func(frame *models.Frame) ([]byte, error)

// Service is a Detector backed by a remote gRPC inference server.
type Service struct {
	grpcURL     string
	timeout     time.Duration
	encode      EncodeFunc
	dialOptions []grpc.DialOption

	mu        sync.Mutex
	conn      *grpc.ClientConn
	isHealthy bool
}

func NewService(grpcURL string, timeout time.Duration, encode EncodeFunc, opts ...grpc.DialOption) (*Service, error) {
	if encode == nil {
		return nil, fmt.Errorf("frame encoder is required")
	}

	log.Info().Str("url", grpcURL).Msg("Initializing AI detection service")

	service := &Service{
		grpcURL:     grpcURL,
		timeout:     timeout,
		encode:      encode,
		dialOptions: opts,
	}

	// Try to connect, but don't fail if it's not available
	service.mu.Lock()
	err := service.connect()
	service.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("AI detection service not available, will retry later")
	}

	return service, nil
}

// connect must be called with mu held.
func (s *Service) connect() error {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}

	target, creds, err := parseGRPCEndpoint(s.grpcURL)
	if err != nil {
		return fmt.Errorf("failed to parse AI endpoint %s: %w", s.grpcURL, err)
	}

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, s.dialOptions...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to detection service: %w", err)
	}

	// Test connection with health check
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{}); err != nil {
		conn.Close()
		return fmt.Errorf("detection service health check failed: %w", err)
	}

	s.conn = conn
	s.isHealthy = true

	log.Info().Str("target", target).Msg("Successfully connected to AI detection service")
	return nil
}

func (s *Service) ensureConnection() (*grpc.ClientConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isHealthy && s.conn != nil {
		return s.conn, nil
	}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s.conn, nil
}

func (s *Service) Detect(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
	conn, err := s.ensureConnection()
	if err != nil {
		return nil, fmt.Errorf("detection service unavailable: %w", err)
	}

	image, err := s.encode(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	req, err := structpb.NewStruct(map[string]interface{}{
		"camera_id":   frame.CameraID,
		"frame_index": frame.Index,
		"width":       frame.Width,
		"height":      frame.Height,
		"image":       base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build detection request: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := conn.Invoke(ctx, DetectMethod, req, resp); err != nil {
		s.mu.Lock()
		s.isHealthy = false
		s.mu.Unlock()
		return nil, err
	}

	return decodeDetections(resp), nil
}

// decodeDetections converts the response struct, skipping malformed entries.
func decodeDetections(resp *structpb.Struct) []models.Detection {
	list := resp.GetFields()["detections"].GetListValue()
	if list == nil {
		return nil
	}

	detections := make([]models.Detection, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			continue
		}
		bbox := fields["bbox"].GetListValue().GetValues()
		if len(bbox) != 4 {
			continue
		}
		x1, y1 := int(bbox[0].GetNumberValue()), int(bbox[1].GetNumberValue())
		x2, y2 := int(bbox[2].GetNumberValue()), int(bbox[3].GetNumberValue())
		detections = append(detections, models.Detection{
			Label:      fields["label"].GetStringValue(),
			Confidence: fields["confidence"].GetNumberValue(),
			X:          max(0, x1),
			Y:          max(0, y1),
			Width:      max(0, x2-x1),
			Height:     max(0, y2-y1),
		})
	}
	return detections
}

func (s *Service) IsHealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHealthy
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		log.Info().Msg("Shutting down detection service connection")
		err := s.conn.Close()
		s.conn = nil
		s.isHealthy = false
		return err
	}
	return nil
}

// parseGRPCEndpoint normalizes host[:port] or http(s):// URLs into a dial target and
// transport credentials. Ports 443/8443/9443 and https URLs use TLS.
func parseGRPCEndpoint(endpoint string) (string, credentials.TransportCredentials, error) {
	if !strings.Contains(endpoint, "://") {
		if strings.Contains(endpoint, ".") && !strings.Contains(endpoint, ":") {
			endpoint = "https://" + endpoint + ":443"
		} else if strings.Contains(endpoint, ":") {
			parts := strings.Split(endpoint, ":")
			if len(parts) == 2 {
				if port, err := strconv.Atoi(parts[1]); err == nil && (port == 443 || port == 8443 || port == 9443) {
					endpoint = "https://" + endpoint
				} else {
					endpoint = "http://" + endpoint
				}
			}
		} else {
			endpoint = "https://" + endpoint + ":443"
		}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}

	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host = u.Hostname() + ":443"
		case "http":
			host = u.Hostname() + ":80"
		default:
			return "", nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
		}
	}

	var creds credentials.TransportCredentials
	switch u.Scheme {
	case "https":
		creds = credentials.NewTLS(&tls.Config{ServerName: u.Hostname()})
	case "http":
		creds = insecure.NewCredentials()
	default:
		return "", nil, fmt.Errorf("unsupported scheme: %s (supported: http, https)", u.Scheme)
	}

	return host, creds, nil
}
