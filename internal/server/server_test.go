package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scope-service/internal/config"
	"scope-service/internal/protocol"
	"scope-service/internal/scope"
	"scope-service/internal/scpi"
	"scope-service/internal/telemetry"
)

// fakeTransport scripts responses by the command that requested them
type fakeTransport struct {
	responses map[string][]byte
	pending   string
	isOpen    bool
}

func (f *fakeTransport) Open(ctx context.Context) error { f.isOpen = true; return nil }
func (f *fakeTransport) Close() error                   { f.isOpen = false; return nil }
func (f *fakeTransport) IsOpen() bool                   { return f.isOpen }
func (f *fakeTransport) Kind() protocol.Kind            { return protocol.KindBulk }

func (f *fakeTransport) Transmit(ctx context.Context, command []byte) error {
	f.pending = string(command)
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	response, ok := f.responses[f.pending]
	if !ok {
		return nil, fmt.Errorf("no response scripted for %q", f.pending)
	}
	return response, nil
}

func (f *fakeTransport) ReceiveExact(ctx context.Context, size int) ([]byte, error) {
	response, err := f.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if len(response) != size {
		return nil, fmt.Errorf("response is %d bytes, want %d", len(response), size)
	}
	return response, nil
}

func scriptedResponses() map[string][]byte {
	curve := append([]byte("#42500"), bytes.Repeat([]byte{10}, telemetry.SampleCount)...)
	curve = append(curve, '\n')
	preamble := `"Ch1";Y;1.0E-6;0;-1.25E-3;"s";4.0E-2;0.0E0;0.0E0;"Volts";2500` + "\n"

	responses := map[string][]byte{
		scpi.TDS_COMMANDS.IDENTIFY:     []byte("TEKTRONIX,TDS 2022B,C100101,CF:91.1CT FV:v22.01\n"),
		scpi.TDS_COMMANDS.SCALES:       []byte("2.0E0;5.0E-1;2.5E-4\n"),
		scpi.TDS_COMMANDS.PREAMBLE_CH1: []byte(preamble),
		scpi.TDS_COMMANDS.PREAMBLE_CH2: []byte(preamble),
		scpi.TDS_COMMANDS.CURVE_CH1:    curve,
		scpi.TDS_COMMANDS.CURVE_CH2:    curve,
		scpi.TDS_COMMANDS.CURSOR_MODE:  []byte("OFF\n"),
	}
	for slot := 1; slot <= scpi.MeasurementSlots; slot++ {
		command := fmt.Sprintf(scpi.TDS_COMMANDS.MEASUREMENT_SLOT, slot)
		responses[command] = []byte(`NONE;"V";CH1;0.0E0` + "\n")
	}
	return responses
}

func newTestServer(session *scope.Session) (*Server, *gin.Engine) {
	cfg := &config.Config{
		App: config.AppConfig{Name: "scope-service", Version: "test"},
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: "0",
		},
	}
	s := New(cfg, session, zap.NewNop())
	return s, s.setupRouter()
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestServer(scope.NewDetachedSession(zap.NewNop()))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["connected"] != false {
		t.Errorf("connected = %v, want false", body["connected"])
	}
}

func TestLatestWithoutAcquisition(t *testing.T) {
	_, router := newTestServer(scope.NewDetachedSession(zap.NewNop()))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/acquisition", nil))

	if recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
}

func TestAcquireWithoutInstrument(t *testing.T) {
	_, router := newTestServer(scope.NewDetachedSession(zap.NewNop()))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/acquire", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusServiceUnavailable)
	}
}

func TestAcquireAndWaveformCSV(t *testing.T) {
	session := scope.NewSession(&fakeTransport{responses: scriptedResponses()}, zap.NewNop())
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	_, router := newTestServer(session)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/acquire", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("acquire status = %d, body %s", recorder.Code, recorder.Body.String())
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/acquisition", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("acquisition status = %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/waveform.csv", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("csv status = %d", recorder.Code)
	}

	lines := strings.Split(strings.TrimRight(recorder.Body.String(), "\n"), "\n")
	if len(lines) != 1+telemetry.SampleCount {
		t.Fatalf("table has %d lines, want %d", len(lines), 1+telemetry.SampleCount)
	}
	if lines[0] != "     t          ;     ch1      ;     ch2" {
		t.Errorf("header = %q", lines[0])
	}
}
