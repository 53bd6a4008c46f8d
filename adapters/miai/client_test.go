package miai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
)

// ubusCall is one recorded remote-procedure call seen by the fake service.
type ubusCall struct {
	DeviceID string
	Path     string
	Method   string
	Message  map[string]interface{}
}

// fakeService is an in-process stand-in for the device-control service.
type fakeService struct {
	t       *testing.T
	calls   []ubusCall
	replyFn func(call ubusCall) (int, string, interface{})
}

func (s *fakeService) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/remote/ubus" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			s.t.Errorf("bad form: %v", err)
		}

		call := ubusCall{
			DeviceID: r.PostFormValue("deviceId"),
			Path:     r.PostFormValue("path"),
			Method:   r.PostFormValue("method"),
		}
		if raw := r.PostFormValue("message"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &call.Message); err != nil {
				s.t.Errorf("message field is not JSON: %v", err)
			}
		}
		s.calls = append(s.calls, call)

		code, message, data := 0, "Success", interface{}(nil)
		if s.replyFn != nil {
			code, message, data = s.replyFn(call)
		}
		payload, _ := json.Marshal(data)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    json.RawMessage(payload),
		})
	}
}

func newConnectedClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client := NewClient(Config{
		APIBaseURL:  baseURL,
		HTTPTimeout: 5 * time.Second,
	}, zaptest.NewLogger(t))

	bundle := &entities.TokenBundle{
		UserID:       "2369761180",
		ServiceToken: "token-abc",
		DeviceID:     "BINDING0123456789",
		SerialNumber: "SERIAL0123456789",
		Devices: []entities.Device{
			{DeviceID: "dev-1", Name: "Mi Speaker Pro", Model: "LX06"},
		},
	}
	if _, err := client.RestoreSession(bundle); err != nil {
		t.Fatalf("failed to restore session: %v", err)
	}
	if _, err := client.UseDevice(context.Background(), Selector{ByID: "dev-1"}); err != nil {
		t.Fatalf("failed to pin device: %v", err)
	}
	return client
}

func TestSpeakSendsTextToSpeech(t *testing.T) {
	svc := &fakeService{t: t}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := newConnectedClient(t, server.URL)
	if err := client.Speak(context.Background(), "早上好"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	if len(svc.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(svc.calls))
	}
	call := svc.calls[0]
	if call.Path != "mibrain" || call.Method != "text_to_speech" {
		t.Errorf("unexpected call %s/%s", call.Path, call.Method)
	}
	if call.DeviceID != "dev-1" {
		t.Errorf("expected deviceId dev-1, got %q", call.DeviceID)
	}
	if call.Message["text"] != "早上好" {
		t.Errorf("expected text 早上好, got %v", call.Message["text"])
	}
}

func TestPlayURLSendsMediaCommand(t *testing.T) {
	svc := &fakeService{t: t}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := newConnectedClient(t, server.URL)
	if err := client.PlayURL(context.Background(), "https://cdn.example.com/a.mp3"); err != nil {
		t.Fatalf("play url failed: %v", err)
	}

	call := svc.calls[0]
	if call.Path != "mediaplayer" || call.Method != "player_play_url" {
		t.Errorf("unexpected call %s/%s", call.Path, call.Method)
	}
	if call.Message["url"] != "https://cdn.example.com/a.mp3" {
		t.Errorf("unexpected url %v", call.Message["url"])
	}
	if call.Message["type"] != float64(1) {
		t.Errorf("expected type 1, got %v", call.Message["type"])
	}
}

func TestSetVolumeClamping(t *testing.T) {
	tests := []struct {
		name  string
		level int
		want  float64
	}{
		{"above range clamps to 100", 150, 100},
		{"below range clamps to 0", -5, 0},
		{"in range passes through", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{t: t}
			server := httptest.NewServer(svc.handler())
			defer server.Close()

			client := newConnectedClient(t, server.URL)
			if err := client.SetVolume(context.Background(), tt.level); err != nil {
				t.Fatalf("set volume failed: %v", err)
			}

			call := svc.calls[len(svc.calls)-1]
			if call.Method != "player_set_volume" {
				t.Errorf("unexpected method %s", call.Method)
			}
			if got := call.Message["volume"]; got != tt.want {
				t.Errorf("expected wire volume %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGetStatusDecodesNestedInfo(t *testing.T) {
	svc := &fakeService{t: t}
	svc.replyFn = func(call ubusCall) (int, string, interface{}) {
		return 0, "Success", map[string]string{
			"info": `{"status":2,"play_song_detail":{"duration":120,"position":119}}`,
		}
	}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := newConnectedClient(t, server.URL)
	status, err := client.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("get status failed: %v", err)
	}

	if !status.Playing {
		t.Error("expected playing=true")
	}
	if status.Duration == nil || *status.Duration != 120 {
		t.Errorf("expected duration 120, got %v", status.Duration)
	}
	if status.Position == nil || *status.Position != 119 {
		t.Errorf("expected position 119, got %v", status.Position)
	}
}

func TestInvokeErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		check   func(t *testing.T, err error)
	}{
		{
			name: "401 maps to AuthError",
			code: 401,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Errorf("expected AuthError, got %v", err)
				}
			},
		},
		{
			name: "non-zero code maps to RemoteError",
			code: 100,
			check: func(t *testing.T, err error) {
				var remoteErr *RemoteError
				if !errors.As(err, &remoteErr) {
					t.Fatalf("expected RemoteError, got %v", err)
				}
				if remoteErr.Code != 100 {
					t.Errorf("expected code 100, got %d", remoteErr.Code)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{t: t}
			svc.replyFn = func(call ubusCall) (int, string, interface{}) {
				return tt.code, "rejected", nil
			}
			server := httptest.NewServer(svc.handler())
			defer server.Close()

			client := newConnectedClient(t, server.URL)
			err := client.Speak(context.Background(), "test")
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestCommandsRequireSessionAndDevice(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		fmt.Fprint(w, `{"code":0}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIBaseURL: server.URL}, zaptest.NewLogger(t))

	if err := client.Speak(context.Background(), "hi"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected before login, got %v", err)
	}

	bundle := &entities.TokenBundle{
		UserID:       "123",
		ServiceToken: "tok",
		DeviceID:     "BINDING0123456789",
		SerialNumber: "SERIAL0123456789",
	}
	if _, err := client.RestoreSession(bundle); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if err := client.Speak(context.Background(), "hi"); !errors.Is(err, ErrNoDeviceAvailable) {
		t.Errorf("expected ErrNoDeviceAvailable without a pinned device, got %v", err)
	}

	if n := atomic.LoadInt64(&requests); n != 0 {
		t.Errorf("precondition failures must not hit the network, saw %d requests", n)
	}
}

func TestInvokeAttachesSessionCookies(t *testing.T) {
	var cookies map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookies = map[string]string{}
		for _, c := range r.Cookies() {
			cookies[c.Name] = c.Value
		}
		fmt.Fprint(w, `{"code":0,"message":"Success"}`)
	}))
	defer server.Close()

	client := newConnectedClient(t, server.URL)
	if err := client.Speak(context.Background(), "hi"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	want := map[string]string{
		"userId":       "2369761180",
		"serviceToken": "token-abc",
		"sn":           "SERIAL0123456789",
		"deviceId":     "BINDING0123456789",
	}
	for name, value := range want {
		if cookies[name] != value {
			t.Errorf("expected cookie %s=%s, got %q", name, value, cookies[name])
		}
	}
}

func TestInvokeNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0}`)
	}))
	client := newConnectedClient(t, server.URL)
	server.Close()

	err := client.Speak(context.Background(), "hi")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("expected NetworkError when the service is unreachable, got %v", err)
	}
}
