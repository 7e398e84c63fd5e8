// Package monitoring turns a running simulation into a web server, so that
// locks and sleep gates can be watched and poked while the engine runs.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/go-logr/logr"
	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/powerlock/automation"
	"github.com/sarchlab/powerlock/id"
	"github.com/sarchlab/powerlock/lockregistry"
	"github.com/sarchlab/powerlock/monitoring/web"
	"github.com/sarchlab/powerlock/powermanagement"
	"github.com/sarchlab/powerlock/timing"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	engine     timing.Engine
	dispatcher *automation.Dispatcher
	instances  []*powermanagement.Comp
	portNumber int
	log        logr.Logger
	server     *http.Server

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{log: logr.Discard()}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		m.log.Info("port not allowed, using a random port instead",
			"port", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(log logr.Logger) *Monitor {
	m.log = log
	return m
}

// RegisterEngine registers the engine that is used in the simulation. Lock
// requests are dispatched onto it unless another dispatcher is registered.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e

	if m.dispatcher == nil {
		m.dispatcher = automation.NewDispatcher(e, m.log)
	}
}

// RegisterDispatcher sets the dispatcher that runs lock requests.
func (m *Monitor) RegisterDispatcher(d *automation.Dispatcher) {
	m.dispatcher = d
}

// RegisterInstance registers a power management instance to be monitored.
func (m *Monitor) RegisterInstance(c *powermanagement.Comp) {
	m.instances = append(m.instances, c)
}

// CreateProgressBar creates a new progress bar that follows the engine.
func (m *Monitor) CreateProgressBar(name string, total time.Duration) *ProgressBar {
	bar := &ProgressBar{
		ID:        id.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     uint64(total),
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	if m.engine != nil {
		m.engine.AcceptHook(bar)
	}

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) profiling() bool {
	for _, c := range m.instances {
		if c.Config().Profiling {
			return true
		}
	}

	return false
}

// Handler returns the router that serves the monitoring API and web page.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/locks/{name}", m.listLocks)
	r.HandleFunc("/api/gate/{name}", m.gateState)
	r.HandleFunc("/api/acquire/{name}", m.acquire).Methods(http.MethodPost)
	r.HandleFunc("/api/release/{name}", m.release).Methods(http.MethodPost)
	r.HandleFunc("/api/residency/{name}", m.residency)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)

	if m.profiling() {
		r.HandleFunc("/api/profile", m.collectProfile)
		r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	}

	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			m.log.Error(err, "monitor stopped")
		}
	}()

	return url, nil
}

// Shutdown stops the web server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now  int64  `json:"now"`
	Time string `json:"time"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.Now()
	m.writeJSON(w, nowRsp{Now: int64(now), Time: now.String()})
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.instances))
	for _, c := range m.instances {
		names = append(names, c.Name())
	}

	m.writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	c := m.findInstanceOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	var buf bytes.Buffer
	var err error

	m.engine.Inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(c)
		serializer.SetMaxDepth(1)
		err = serializer.Serialize(&buf)
	})

	m.writeOrFail(w, buf.Bytes(), err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c := m.findInstanceOr404(w, req.CompName)
	if c == nil {
		return
	}

	var buf bytes.Buffer

	m.engine.Inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(c)
		serializer.SetMaxDepth(1)

		err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
		if err == nil {
			err = serializer.Serialize(&buf)
		}
	})

	m.writeOrFail(w, buf.Bytes(), err)
}

type lockRsp struct {
	ID         string `json:"id"`
	User       string `json:"user"`
	Type       string `json:"type"`
	AcquiredAt string `json:"acquired_at"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

type typeStatsRsp struct {
	Type     string  `json:"type"`
	Acquired int     `json:"acquired"`
	Released int     `json:"released"`
	Expired  int     `json:"expired"`
	Active   int     `json:"active"`
	HeldMS   float64 `json:"held_ms"`
}

type locksRsp struct {
	Tokens []lockRsp      `json:"tokens"`
	Stats  []typeStatsRsp `json:"stats"`
}

func (m *Monitor) listLocks(w http.ResponseWriter, r *http.Request) {
	c := m.findInstanceOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	rsp := locksRsp{Tokens: []lockRsp{}, Stats: []typeStatsRsp{}}

	m.engine.Inspect(func() {
		for _, t := range c.Registry().Tokens() {
			l := lockRsp{
				ID:         t.ID,
				User:       t.User.String(),
				Type:       t.Type.String(),
				AcquiredAt: t.AcquiredAt.String(),
			}

			if t.HasExpiry {
				l.ExpiresAt = t.ExpiresAt.String()
			}

			rsp.Tokens = append(rsp.Tokens, l)
		}

		for _, s := range c.Stats() {
			rsp.Stats = append(rsp.Stats, typeStatsRsp{
				Type:     s.Type.String(),
				Acquired: s.Acquired,
				Released: s.Released,
				Expired:  s.Expired,
				Active:   s.Active,
				HeldMS:   float64(s.Held) / float64(time.Millisecond),
			})
		}
	})

	m.writeJSON(w, rsp)
}

type gateRsp struct {
	Mode                         string `json:"mode"`
	ActiveCount                  int    `json:"active_count"`
	SleepPermitted               bool   `json:"sleep_permitted"`
	PeripheralPowerDownPermitted bool   `json:"peripheral_power_down_permitted"`
	FlashPowerDownPermitted      bool   `json:"flash_power_down_permitted"`
	MinFreqMHz                   int    `json:"min_freq_mhz"`
	MaxFreqMHz                   int    `json:"max_freq_mhz"`
}

func (m *Monitor) gateState(w http.ResponseWriter, r *http.Request) {
	c := m.findInstanceOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	var rsp gateRsp

	m.engine.Inspect(func() {
		state := c.GateState()
		bounds := c.Bounds()

		rsp = gateRsp{
			Mode:                         c.Gate().Mode().String(),
			ActiveCount:                  c.ActiveCount(),
			SleepPermitted:               state.SleepPermitted,
			PeripheralPowerDownPermitted: state.PeripheralPowerDownPermitted,
			FlashPowerDownPermitted:      state.FlashPowerDownPermitted,
			MinFreqMHz:                   bounds.MinMHz,
			MaxFreqMHz:                   bounds.MaxMHz,
		}
	})

	m.writeJSON(w, rsp)
}

type apiLockAction struct {
	comp     *powermanagement.Comp
	lockType lockregistry.Type
	release  bool
}

func (a *apiLockAction) Play() {
	if a.release {
		a.comp.ReleaseLock(lockregistry.UserAPI, a.lockType)
		return
	}

	a.comp.AcquireLock(lockregistry.UserAPI, a.lockType)
}

func (m *Monitor) acquire(w http.ResponseWriter, r *http.Request) {
	m.dispatchLock(w, r, false)
}

func (m *Monitor) release(w http.ResponseWriter, r *http.Request) {
	m.dispatchLock(w, r, true)
}

// dispatchLock queues the request on the engine, so the response only
// confirms that it was accepted.
func (m *Monitor) dispatchLock(
	w http.ResponseWriter,
	r *http.Request,
	release bool,
) {
	c := m.findInstanceOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	lockType := lockregistry.TypeCPU
	if name := r.URL.Query().Get("type"); name != "" {
		var err error

		lockType, err = lockregistry.ParseType(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	action := &apiLockAction{comp: c, lockType: lockType, release: release}
	m.dispatcher.Fire(&automation.Trigger{
		Name:    "api." + c.Name(),
		Actions: []automation.Action{action},
	})

	w.WriteHeader(http.StatusAccepted)
}

type residencyRsp struct {
	Mode    string  `json:"mode"`
	TimeMS  float64 `json:"time_ms"`
	Entries int     `json:"entries"`
}

func (m *Monitor) residency(w http.ResponseWriter, r *http.Request) {
	c := m.findInstanceOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	if c.Residency() == nil {
		http.Error(w, "profiling is not enabled", http.StatusNotFound)
		return
	}

	rsp := []residencyRsp{}

	m.engine.Inspect(func() {
		for _, s := range c.Residency().Snapshot() {
			rsp = append(rsp, residencyRsp{
				Mode:    s.Mode.String(),
				TimeMS:  float64(s.Time) / float64(time.Millisecond),
				Entries: s.Entries,
			})
		}
	})

	m.writeJSON(w, rsp)
}

func (m *Monitor) findInstanceOr404(
	w http.ResponseWriter,
	name string,
) *powermanagement.Comp {
	for _, c := range m.instances {
		if c.Name() == name {
			return c
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

type progressRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		b.Lock()
		bars = append(bars, progressRsp{
			ID:        b.ID,
			Name:      b.Name,
			StartTime: b.StartTime,
			Total:     b.Total,
			Finished:  b.Finished,
		})
		b.Unlock()
	}

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.writeOrFail(w, nil, err)
		return
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		m.writeOrFail(w, nil, err)
		return
	}

	memory, err := p.MemoryInfo()
	if err != nil {
		m.writeOrFail(w, nil, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		m.writeOrFail(w, nil, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.writeOrFail(w, nil, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
	}

	m.writeOrFail(w, data, err)
}

func (m *Monitor) writeOrFail(w http.ResponseWriter, data []byte, err error) {
	if err != nil {
		m.log.Error(err, "monitor request failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	if _, err := w.Write(data); err != nil {
		m.log.Error(err, "failed to write response")
	}
}
