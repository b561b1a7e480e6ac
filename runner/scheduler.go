package runner

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"etldeploy/runner/storage"
)

// Scheduler triggers automatic provisioning runs based on the schedules in
// the deploy config. Retries are out of scope for the engine itself; a
// schedule simply re-triggers the whole run.
type Scheduler struct {
	cfg      *Config
	storage  *storage.Storage
	stopChan chan struct{}
	lastRuns map[string]time.Time // track last execution per schedule
	mu       sync.RWMutex         // protect lastRuns map
	running  map[string]bool      // track currently running schedules
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *Config, storage *storage.Storage) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		storage:  storage,
		stopChan: make(chan struct{}),
		lastRuns: make(map[string]time.Time),
		running:  make(map[string]bool),
	}
}

// Start begins the scheduler loop
func (s *Scheduler) Start() {
	log.Println("📅 Scheduler started")
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	// Run tick immediately on start
	s.tick()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopChan:
			log.Println("📅 Scheduler stopped")
			return
		}
	}
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// tick checks all schedules and triggers runs if needed
func (s *Scheduler) tick() {
	for i, schedule := range s.cfg.Schedules {
		scheduleKey := fmt.Sprintf("instance-%d-schedule-%d", schedule.Instance, i)

		s.mu.RLock()
		lastRun := s.lastRuns[scheduleKey]
		isRunning := s.running[scheduleKey]
		s.mu.RUnlock()

		// Skip if already running
		if isRunning {
			continue
		}

		if !s.shouldRun(schedule, lastRun) {
			continue
		}

		if _, err := ResolveParams(s.cfg, schedule.Instance); err != nil {
			log.Printf("⚠️  Schedule skipped: %v", err)
			continue
		}

		s.mu.Lock()
		s.running[scheduleKey] = true
		s.lastRuns[scheduleKey] = time.Now()
		s.mu.Unlock()

		// Distinct instances are directory-disjoint, so scheduled runs may
		// overlap; the per-instance lock serializes same-instance runs.
		go func(sched Schedule, key string) {
			s.executeSchedule(sched)

			s.mu.Lock()
			delete(s.running, key)
			s.mu.Unlock()
		}(schedule, scheduleKey)
	}
}

// shouldRun determines if a schedule should be triggered now
func (s *Scheduler) shouldRun(schedule Schedule, lastRun time.Time) bool {
	now := time.Now()

	// Time-based schedule (at: "HH:MM")
	if schedule.At != "" {
		hour, minute, err := parseAtTime(schedule.At)
		if err != nil {
			log.Printf("⚠️  Invalid time format '%s': %v", schedule.At, err)
			return false
		}

		if now.Hour() == hour && now.Minute() == minute {
			// Ensure we only run once per day at this time
			if lastRun.IsZero() || now.Sub(lastRun) >= 23*time.Hour {
				return true
			}
		}
		return false
	}

	// Interval-based schedule (every: "1h", "30m", etc.)
	if schedule.Every != "" {
		interval, err := parseInterval(schedule.Every)
		if err != nil {
			log.Printf("⚠️  Invalid interval format '%s': %v", schedule.Every, err)
			return false
		}

		if lastRun.IsZero() || now.Sub(lastRun) >= interval {
			return true
		}
		return false
	}

	return false
}

// executeSchedule triggers a provisioning run for the given schedule
func (s *Scheduler) executeSchedule(schedule Schedule) {
	scheduleType := schedule.At
	if scheduleType == "" {
		scheduleType = schedule.Every
	}
	log.Printf("⏰ Schedule triggered: instance %d - %s", schedule.Instance, scheduleType)

	_, err := RunInstance(context.Background(), s.cfg, schedule.Instance, RunOptions{
		Storage:          s.storage,
		StreamToTerminal: false,
	})
	if err != nil {
		log.Printf("❌ Scheduled run failed for instance %d: %v", schedule.Instance, err)
	} else {
		log.Printf("✅ Scheduled run completed: instance %d", schedule.Instance)
	}
}

// parseAtTime parses "HH:MM" format
func parseAtTime(at string) (hour, minute int, err error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format, expected HH:MM")
	}

	var hourVal int
	hourVal, err = strconv.Atoi(parts[0])
	if err != nil || hourVal < 0 || hourVal > 23 {
		return 0, 0, fmt.Errorf("invalid hour")
	}
	hour = hourVal

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute")
	}

	return hour, minute, nil
}

// parseInterval parses duration strings like "1h", "30m", "1h30m"
func parseInterval(every string) (time.Duration, error) {
	// Handle combined formats like "1h30m"
	if strings.Contains(every, "h") && strings.Contains(every, "m") {
		re := regexp.MustCompile(`(\d+)h(\d+)m`)
		matches := re.FindStringSubmatch(every)
		if len(matches) == 3 {
			hours, _ := strconv.Atoi(matches[1])
			minutes, _ := strconv.Atoi(matches[2])
			return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
		}
	}

	// Simple formats like "1h", "30m", "24h"
	duration, err := time.ParseDuration(every)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format")
	}

	return duration, nil
}
