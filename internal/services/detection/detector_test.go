package detection

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"incident-worker-go/internal/models"
)

func testFrame() *models.Frame {
	return &models.Frame{CameraID: "cam1", Index: 7, Width: 640, Height: 480, Data: make([]byte, 640*480*3)}
}

func staticDetector(dets ...models.Detection) Detector {
	return DetectorFunc(func(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
		return dets, nil
	})
}

func TestConfidenceFilter(t *testing.T) {
	d := ConfidenceFilter{
		Floor: 0.5,
		Next: staticDetector(
			models.Detection{Label: "car", Confidence: 0.49},
			models.Detection{Label: "car", Confidence: 0.5},
			models.Detection{Label: "accident", Confidence: 0.9},
			models.Detection{Label: "accident", Confidence: 1.2},
			models.Detection{Label: "person", Confidence: -0.1},
		),
	}

	dets, err := d.Detect(context.Background(), testFrame())
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, 0.5, dets[0].Confidence)
	assert.Equal(t, "accident", dets[1].Label)
}

func TestConfidenceFilterDoesNotAliasInput(t *testing.T) {
	input := []models.Detection{{Label: "a", Confidence: 0.1}, {Label: "b", Confidence: 0.9}}
	d := ConfidenceFilter{Floor: 0.5, Next: staticDetector(input...)}

	_, err := d.Detect(context.Background(), testFrame())
	require.NoError(t, err)
	assert.Equal(t, "a", input[0].Label)
}

func TestInstrumentedWrapsErrors(t *testing.T) {
	boom := errors.New("model exploded")
	d := Wrap(DetectorFunc(func(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
		return nil, boom
	}), 0.5)

	dets, err := d.Detect(context.Background(), testFrame())
	require.Error(t, err)
	assert.Nil(t, dets)
	assert.ErrorIs(t, err, models.ErrDetectorFailure)
	assert.ErrorIs(t, err, boom)
}

func TestSimulatedRanges(t *testing.T) {
	labels := []string{"vehicle collision", "accident"}
	accident := models.NewLabelSet(labels...)
	d := NewSimulated(labels, 1, 0, 42)
	frame := testFrame()

	for i := 0; i < 200; i++ {
		dets, err := d.Detect(context.Background(), frame)
		require.NoError(t, err)

		accidents := 0
		for _, det := range dets {
			if accident.Contains(det.Label) {
				accidents++
				assert.GreaterOrEqual(t, det.Confidence, 0.75)
				assert.Less(t, det.Confidence, 0.98)
			} else {
				assert.GreaterOrEqual(t, det.Confidence, 0.6)
				assert.Less(t, det.Confidence, 0.9)
			}
			assert.GreaterOrEqual(t, det.X, 0)
			assert.GreaterOrEqual(t, det.Y, 0)
			assert.LessOrEqual(t, det.X+det.Width, frame.Width)
			assert.LessOrEqual(t, det.Y+det.Height, frame.Height)
		}
		assert.Equal(t, 1, accidents)
		assert.GreaterOrEqual(t, len(dets)-accidents, 1)
		assert.LessOrEqual(t, len(dets)-accidents, 5)
	}
}

func TestSimulatedNeverRaisesAtZeroProbability(t *testing.T) {
	labels := []string{"accident"}
	d := NewSimulated(labels, 0, 0, 7)
	for i := 0; i < 200; i++ {
		dets, err := d.Detect(context.Background(), testFrame())
		require.NoError(t, err)
		assert.Zero(t, models.NewLabelSet(labels...).Count(dets))
	}
}

func TestSimulatedSeedIsDeterministic(t *testing.T) {
	a := NewSimulated([]string{"accident"}, 0.3, 0, 99)
	b := NewSimulated([]string{"accident"}, 0.3, 0, 99)
	for i := 0; i < 50; i++ {
		da, err := a.Detect(context.Background(), testFrame())
		require.NoError(t, err)
		db, err := b.Detect(context.Background(), testFrame())
		require.NoError(t, err)
		assert.Equal(t, da, db)
	}
}

func TestSimulatedTinyFrame(t *testing.T) {
	d := NewSimulated([]string{"accident"}, 1, 0, 3)
	dets, err := d.Detect(context.Background(), &models.Frame{Width: 4, Height: 2})
	require.NoError(t, err)
	for _, det := range dets {
		assert.LessOrEqual(t, det.X+det.Width, 4)
		assert.LessOrEqual(t, det.Y+det.Height, 2)
	}
}

func TestSimulatedHonorsContext(t *testing.T) {
	d := NewSimulated(nil, 0, time.Hour, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Detect(ctx, testFrame())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseGRPCEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		target   string
		secure   bool
		wantErr  bool
	}{
		{endpoint: "localhost:50052", target: "localhost:50052"},
		{endpoint: "inference.example.com", target: "inference.example.com:443", secure: true},
		{endpoint: "inference.example.com:8443", target: "inference.example.com:8443", secure: true},
		{endpoint: "http://ai:9000", target: "ai:9000"},
		{endpoint: "https://ai", target: "ai:443", secure: true},
		{endpoint: "ftp://ai:21", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			target, creds, err := parseGRPCEndpoint(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.target, target)
			if tt.secure {
				assert.Equal(t, "tls", creds.Info().SecurityProtocol)
			} else {
				assert.Equal(t, "insecure", creds.Info().SecurityProtocol)
			}
		})
	}
}

// fakeInference serves DetectMethod over an in-memory listener.
func fakeInference(t *testing.T, handle func(req *structpb.Struct) (*structpb.Struct, error)) *bufconn.Listener {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, health.NewServer())
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "detection.DetectionService",
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "Detect",
			Handler: func(_ interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				req := &structpb.Struct{}
				if err := dec(req); err != nil {
					return nil, err
				}
				return handle(req)
			},
		}},
	}, struct{}{})

	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return lis
}

func dialBufconn(lis *bufconn.Listener) grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func TestGRPCDetect(t *testing.T) {
	var got *structpb.Struct
	lis := fakeInference(t, func(req *structpb.Struct) (*structpb.Struct, error) {
		got = req
		return structpb.NewStruct(map[string]interface{}{
			"detections": []interface{}{
				map[string]interface{}{"label": "accident", "confidence": 0.91, "bbox": []interface{}{10, 20, 110, 70}},
				map[string]interface{}{"label": "car", "confidence": 0.7, "bbox": []interface{}{1, 2}},
			},
		})
	})

	encode := func(frame *models.Frame) ([]byte, error) { return []byte("jpeg"), nil }
	svc, err := NewService("localhost:1", time.Second, encode, dialBufconn(lis))
	require.NoError(t, err)
	defer svc.Shutdown(context.Background())

	dets, err := svc.Detect(context.Background(), testFrame())
	require.NoError(t, err)
	assert.True(t, svc.IsHealthy())

	require.Len(t, dets, 1)
	assert.Equal(t, models.Detection{Label: "accident", Confidence: 0.91, X: 10, Y: 20, Width: 100, Height: 50}, dets[0])

	require.NotNil(t, got)
	assert.Equal(t, "cam1", got.Fields["camera_id"].GetStringValue())
	assert.Equal(t, float64(640), got.Fields["width"].GetNumberValue())
	assert.Equal(t, "anBlZw==", got.Fields["image"].GetStringValue())
}

func TestGRPCDetectEncodeFailure(t *testing.T) {
	lis := fakeInference(t, func(req *structpb.Struct) (*structpb.Struct, error) {
		return &structpb.Struct{}, nil
	})

	encode := func(frame *models.Frame) ([]byte, error) { return nil, errors.New("bad frame") }
	svc, err := NewService("localhost:1", time.Second, encode, dialBufconn(lis))
	require.NoError(t, err)
	defer svc.Shutdown(context.Background())

	_, err = svc.Detect(context.Background(), testFrame())
	assert.ErrorContains(t, err, "bad frame")
}

func TestGRPCUnavailable(t *testing.T) {
	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})
	encode := func(frame *models.Frame) ([]byte, error) { return []byte{}, nil }

	svc, err := NewService("localhost:1", time.Second, encode, dialer)
	require.NoError(t, err)
	assert.False(t, svc.IsHealthy())

	_, err = svc.Detect(context.Background(), testFrame())
	assert.ErrorContains(t, err, "detection service unavailable")
}

func TestNewServiceRequiresEncoder(t *testing.T) {
	_, err := NewService("localhost:1", time.Second, nil)
	assert.Error(t, err)
}
