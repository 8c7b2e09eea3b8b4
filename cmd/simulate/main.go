// Command simulate drives a running api-server with concurrent bookings, cancels,
// reschedules and reads. A few hot cells are hammered on purpose so the
// report shows how many contenders lost each race. Run the server with
// BOOKING_RATE_LIMIT_RPS=0 and RATE_LIMIT_RPS=0 or most requests get 429.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	CancelRatio     float64
	RescheduleRatio float64
	ReadRatio       float64
	HotCells        int
	HotRatio        float64
	ProviderLimit   int
}

type cell struct {
	ProviderID int64
	Date       string
	Time       string
}

type booking struct {
	ID    int64
	Email string
}

type DataPool struct {
	Cells    []cell
	Hot      []cell
	mu       sync.Mutex
	bookings []booking
}

func (dp *DataPool) AddBooking(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

// PickBooking returns a random booking; take removes it from the pool.
func (dp *DataPool) PickBooking(rng *rand.Rand, take bool) (booking, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.bookings) == 0 {
		return booking{}, false
	}
	idx := rng.Intn(len(dp.bookings))
	b := dp.bookings[idx]
	if take {
		dp.bookings = slices.Delete(dp.bookings, idx, idx+1)
	}
	return b, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error, ok int, conflicts ...int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status == ok:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && slices.Contains(conflicts, status):
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	pick := func(pct int) time.Duration {
		return latencies[min(len(latencies)*pct/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pick(50), pick(95)
}

type Metrics struct {
	Booking    OperationMetrics
	HotBooking OperationMetrics
	Cancel     OperationMetrics
	Reschedule OperationMetrics
	ReadByID   OperationMetrics
	FindEmail  OperationMetrics
	Slots      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d book=%.2f cancel=%.2f reschedule=%.2f read=%.2f hot_cells=%d",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CancelRatio, cfg.RescheduleRatio, cfg.ReadRatio, cfg.HotCells)

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataPool, err := sim.loadDataPool(ctx)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	sim.pool = dataPool
	log.Printf("loaded: %d open cells, %d hot", len(dataPool.Cells), len(dataPool.Hot))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	_ = godotenv.Load()

	cfg := SimConfig{
		APIBaseURL:      strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.4),
		CancelRatio:     getFloat("SIM_CANCEL_RATIO", 0.1),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.1),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.4),
		HotCells:        getInt("SIM_HOT_CELLS", 5),
		HotRatio:        getFloat("SIM_HOT_RATIO", 0.3),
		ProviderLimit:   getInt("SIM_PROVIDER_LIMIT", 8),
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.RescheduleRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.RescheduleRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("SIM_API_BASE_URL is invalid: %w", err)
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HotRatio < 0 || cfg.HotRatio > 1 {
		return fmt.Errorf("SIM_HOT_RATIO must be within [0, 1]")
	}
	return nil
}

// loadDataPool collects open cells through the public API.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	var providers struct {
		Providers []struct {
			ID int64 `json:"id"`
		} `json:"providers"`
	}
	if err := s.getJSON(ctx, "/api/providers", &providers); err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}

	dataPool := &DataPool{}
	for i, p := range providers.Providers {
		if i >= s.config.ProviderLimit {
			break
		}
		var slots struct {
			Slots map[string][]string `json:"slots"`
		}
		if err := s.getJSON(ctx, fmt.Sprintf("/api/providers/%d/slots", p.ID), &slots); err != nil {
			return nil, fmt.Errorf("load slots for provider %d: %w", p.ID, err)
		}
		for date, times := range slots.Slots {
			for _, tm := range times {
				dataPool.Cells = append(dataPool.Cells, cell{ProviderID: p.ID, Date: date, Time: tm})
			}
		}
	}

	if len(dataPool.Cells) == 0 {
		return nil, fmt.Errorf("no open cells, run the seed first")
	}

	slices.SortFunc(dataPool.Cells, func(a, b cell) int {
		return strings.Compare(fmt.Sprint(a.Date, a.Time, a.ProviderID), fmt.Sprint(b.Date, b.Time, b.ProviderID))
	})
	dataPool.Hot = dataPool.Cells[:min(s.config.HotCells, len(dataPool.Cells))]

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.RescheduleRatio:
			s.doReschedule(ctx, rng)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doFindByEmail(ctx, rng)
			default:
				s.doSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) pickCell(rng *rand.Rand) (cell, bool) {
	if len(s.pool.Hot) > 0 && rng.Float64() < s.config.HotRatio {
		return s.pool.Hot[rng.Intn(len(s.pool.Hot))], true
	}
	return s.pool.Cells[rng.Intn(len(s.pool.Cells))], false
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	c, hot := s.pickCell(rng)
	email := strings.ToLower(gofakeit.Email())

	body := map[string]any{
		"provider_id":             c.ProviderID,
		"appointment_type_id":     rng.Intn(10) + 1,
		"patient_first_name":      gofakeit.FirstName(),
		"patient_last_name":       gofakeit.LastName(),
		"patient_email":           email,
		"patient_phone":           fmt.Sprintf("(555) %03d-%04d", rng.Intn(800)+200, rng.Intn(10000)),
		"appointment_date":        c.Date,
		"appointment_time":        c.Time,
		"notification_preference": []string{"email", "sms", "both"}[rng.Intn(3)],
	}

	var resp struct {
		Appointment struct {
			ID int64 `json:"id"`
		} `json:"appointment"`
	}
	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/api/appointments", body, &resp)
	latency := time.Since(start)

	if err == nil && status == http.StatusCreated {
		s.pool.AddBooking(booking{ID: resp.Appointment.ID, Email: email})
	}

	m := &s.metrics.Booking
	if hot {
		m = &s.metrics.HotBooking
	}
	m.Record(latency, status, err, http.StatusCreated, http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.PickBooking(rng, true)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.send(ctx, http.MethodPatch, fmt.Sprintf("/api/appointments/%d/cancel", b.ID),
		map[string]any{"cancel_reason": gofakeit.RandomString([]string{"Schedule conflict", "Feeling better", "Travel"})}, nil)
	s.metrics.Cancel.Record(time.Since(start), status, err, http.StatusOK, http.StatusBadRequest)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.PickBooking(rng, false)
	if !ok {
		return
	}
	c, _ := s.pickCell(rng)

	start := time.Now()
	status, err := s.send(ctx, http.MethodPatch, fmt.Sprintf("/api/appointments/%d/reschedule", b.ID),
		map[string]any{"appointment_date": c.Date, "appointment_time": c.Time}, nil)
	s.metrics.Reschedule.Record(time.Since(start), status, err, http.StatusOK, http.StatusConflict, http.StatusBadRequest)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.PickBooking(rng, false)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, fmt.Sprintf("/api/appointments/%d", b.ID), nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), status, err, http.StatusOK)
}

func (s *Simulator) doFindByEmail(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.PickBooking(rng, false)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, "/api/appointments?email="+url.QueryEscape(b.Email), nil, nil)
	s.metrics.FindEmail.Record(time.Since(start), status, err, http.StatusOK)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Cells[rng.Intn(len(s.pool.Cells))]

	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, fmt.Sprintf("/api/providers/%d/slots?date=%s", c.ProviderID, c.Date), nil, nil)
	s.metrics.Slots.Record(time.Since(start), status, err, http.StatusOK)
}

func (s *Simulator) send(ctx context.Context, method, path string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	status, err := s.send(ctx, http.MethodGet, path, nil, out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, status)
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Booking (hot cells)", &s.metrics.HotBooking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Find by email", &s.metrics.FindEmail)
	printOperationReport("Slots by date", &s.metrics.Slots)

	if won := atomic.LoadInt64(&s.metrics.HotBooking.Success); won > 0 {
		fmt.Printf("Hot cells: %d won across %d cells; every extra win needed a cancel or reschedule in between\n",
			won, len(s.pool.Hot))
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
