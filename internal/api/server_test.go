package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openuvc/uvcnode/internal/camerainfo"
	"github.com/openuvc/uvcnode/internal/config"
	"github.com/openuvc/uvcnode/internal/driver"
	"github.com/openuvc/uvcnode/internal/events"
	"github.com/openuvc/uvcnode/pkg/uvc"
)

type fakeDriver struct {
	state   driver.State
	info    uvc.DeviceInfo
	hasInfo bool
	devices []uvc.DeviceInfo
}

func (f *fakeDriver) State() driver.State { return f.state }

func (f *fakeDriver) DeviceInfo() (uvc.DeviceInfo, bool) { return f.info, f.hasInfo }

func (f *fakeDriver) Devices() ([]uvc.DeviceInfo, error) { return f.devices, nil }

type fakeReconfig struct {
	snap     config.Snapshot
	updated  []config.Snapshot
	restarts []string
}

func (f *fakeReconfig) Snapshot() config.Snapshot { return f.snap }

func (f *fakeReconfig) Update(next config.Snapshot, source string) (config.Snapshot, error) {
	if err := next.Validate(); err != nil {
		return f.snap, err
	}
	f.updated = append(f.updated, next)
	f.snap = next
	return next, nil
}

func (f *fakeReconfig) Restart(reason string) { f.restarts = append(f.restarts, reason) }

func newTestServer(t *testing.T, drv *fakeDriver, rc *fakeReconfig) *httptest.Server {
	t.Helper()
	s := NewServer(&Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Driver:       drv,
		Reconfig:     rc,
		EventBus:     events.New(),
		Info:         camerainfo.NewManager("camera"),
	})
	ts := httptest.NewServer(s.mux)
	t.Cleanup(ts.Close)
	return ts
}

func authed(t *testing.T, method, url, body string) *http.Request {
	t.Helper()
	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, url, nil)
	} else {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if err != nil {
		t.Fatal(err)
	}
	cred := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	req.Header.Set("Authorization", "Basic "+cred)
	return req
}

func TestHealthNoAuth(t *testing.T) {
	ts := newTestServer(t, &fakeDriver{}, &fakeReconfig{snap: config.Default()})

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	ts := newTestServer(t, &fakeDriver{}, &fakeReconfig{snap: config.Default()})

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); !strings.Contains(got, "Basic") {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestStatusReportsDriverState(t *testing.T) {
	drv := &fakeDriver{
		state:   driver.StateRunning,
		hasInfo: true,
		info: uvc.DeviceInfo{
			VendorID: 0x046d, ProductID: 0x0825, Serial: "8A31F2C0", Bus: 1, Address: 4,
		},
	}
	rc := &fakeReconfig{snap: config.Default()}
	ts := newTestServer(t, drv, rc)

	resp, err := http.DefaultClient.Do(authed(t, http.MethodGet, ts.URL+"/api/status", ""))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var data StatusData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.Fatal(err)
	}
	if data.State != "running" {
		t.Errorf("state = %q, want running", data.State)
	}
	if data.Device == nil || data.Device.Serial != "8A31F2C0" {
		t.Errorf("device = %+v", data.Device)
	}
	if data.Stream.Width != 640 || data.Stream.Height != 480 {
		t.Errorf("stream = %+v", data.Stream)
	}
}

func TestUpdateConfig(t *testing.T) {
	rc := &fakeReconfig{snap: config.Default()}
	ts := newTestServer(t, &fakeDriver{}, rc)

	next := config.Default()
	next.Width = 1280
	next.Height = 720
	body, _ := json.Marshal(next)

	resp, err := http.DefaultClient.Do(authed(t, http.MethodPut, ts.URL+"/api/config", string(body)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(rc.updated) != 1 {
		t.Fatalf("reconfig received %d updates, want 1", len(rc.updated))
	}
	if rc.updated[0].Width != 1280 {
		t.Errorf("updated width = %d, want 1280", rc.updated[0].Width)
	}
}

func TestUpdateConfigRejectsInvalid(t *testing.T) {
	rc := &fakeReconfig{snap: config.Default()}
	ts := newTestServer(t, &fakeDriver{}, rc)

	bad := config.Default()
	bad.Width = -1
	body, _ := json.Marshal(bad)

	resp, err := http.DefaultClient.Do(authed(t, http.MethodPut, ts.URL+"/api/config", string(body)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	if len(rc.updated) != 0 {
		t.Errorf("invalid snapshot reached reconfig")
	}
}

func TestRestart(t *testing.T) {
	rc := &fakeReconfig{snap: config.Default()}
	ts := newTestServer(t, &fakeDriver{state: driver.StateStopped}, rc)

	resp, err := http.DefaultClient.Do(authed(t, http.MethodPost, ts.URL+"/api/restart", ""))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(rc.restarts) != 1 {
		t.Errorf("restart calls = %d, want 1", len(rc.restarts))
	}
}

func TestListDevices(t *testing.T) {
	drv := &fakeDriver{devices: []uvc.DeviceInfo{
		{VendorID: 0x046d, ProductID: 0x0825, Bus: 1, Address: 4},
	}}
	ts := newTestServer(t, drv, &fakeReconfig{snap: config.Default()})

	resp, err := http.DefaultClient.Do(authed(t, http.MethodGet, ts.URL+"/api/devices", ""))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var data DevicesData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.Fatal(err)
	}
	if len(data.Devices) != 1 || data.Devices[0].VendorID != 0x046d {
		t.Errorf("devices = %+v", data.Devices)
	}
}
