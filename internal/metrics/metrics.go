package metrics

import (
	"sync/atomic"
	"time"

	"harbor-server/internal/db"
	"harbor-server/internal/logger"
)

type Snapshot struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Timestamp         time.Time `gorm:"index" json:"timestamp"`
	HTTPBytesOut      int64     `gorm:"default:0" json:"http_bytes_out"`
	HTTPRequests      int64     `gorm:"default:0" json:"http_requests"`
	WebSocketBytesOut int64     `gorm:"default:0" json:"websocket_bytes_out"`
	WebSocketMessages int64     `gorm:"default:0" json:"websocket_messages"`
	ConnectedClients  int       `gorm:"default:0" json:"connected_clients"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Hourly struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	HourBucket        time.Time `gorm:"uniqueIndex" json:"hour_bucket"`
	HTTPBytesOut      int64     `gorm:"default:0" json:"http_bytes_out"`
	HTTPRequests      int64     `gorm:"default:0" json:"http_requests"`
	WebSocketBytesOut int64     `gorm:"default:0" json:"websocket_bytes_out"`
	WebSocketMessages int64     `gorm:"default:0" json:"websocket_messages"`
	TotalBytesOut     int64     `gorm:"default:0" json:"total_bytes_out"`
	PeakClients       int       `gorm:"default:0" json:"peak_clients"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Snapshot) TableName() string {
	return "metrics_snapshots"
}

func (Hourly) TableName() string {
	return "metrics_hourly"
}

var (
	httpBytesOut      int64
	httpRequests      int64
	webSocketBytesOut int64
	webSocketMessages int64
)

func AddHTTPOut(bytes int64) {
	atomic.AddInt64(&httpBytesOut, bytes)
	atomic.AddInt64(&httpRequests, 1)
}

func AddWebSocketOut(bytes int64) {
	atomic.AddInt64(&webSocketBytesOut, bytes)
	atomic.AddInt64(&webSocketMessages, 1)
}

type Service struct {
	snapshotTicker *time.Ticker
	hourlyTicker   *time.Ticker
	cleanupTicker  *time.Ticker
	lastHourBucket time.Time
	clientCount    func() int
	done           chan bool
}

func NewService(clientCount func() int) *Service {
	if clientCount == nil {
		clientCount = func() int { return 0 }
	}
	return &Service{
		snapshotTicker: time.NewTicker(1 * time.Minute),
		hourlyTicker:   time.NewTicker(1 * time.Hour),
		cleanupTicker:  time.NewTicker(24 * time.Hour),
		clientCount:    clientCount,
		done:           make(chan bool),
	}
}

func (s *Service) Start() {
	logger.Infof("starting metrics service")

	s.saveSnapshot()

	go func() {
		for {
			select {
			case <-s.snapshotTicker.C:
				s.saveSnapshot()
			case <-s.hourlyTicker.C:
				s.aggregateHourly()
			case <-s.cleanupTicker.C:
				s.cleanup()
			case <-s.done:
				logger.Infof("metrics service stopped")
				return
			}
		}
	}()
}

func (s *Service) Stop() {
	s.snapshotTicker.Stop()
	s.hourlyTicker.Stop()
	s.cleanupTicker.Stop()
	s.saveSnapshot()
	close(s.done)
}

func (s *Service) current() Snapshot {
	return Snapshot{
		Timestamp:         time.Now(),
		HTTPBytesOut:      atomic.LoadInt64(&httpBytesOut),
		HTTPRequests:      atomic.LoadInt64(&httpRequests),
		WebSocketBytesOut: atomic.LoadInt64(&webSocketBytesOut),
		WebSocketMessages: atomic.LoadInt64(&webSocketMessages),
		ConnectedClients:  s.clientCount(),
	}
}

func (s *Service) saveSnapshot() {
	snapshot := s.current()
	if err := db.DB.Create(&snapshot).Error; err != nil {
		logger.Errorf("save metrics snapshot: %v", err)
	}
}

func (s *Service) aggregateHourly() {
	now := time.Now()
	hourBucket := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	if hourBucket.Equal(s.lastHourBucket) {
		return
	}

	snap := s.current()
	hourly := Hourly{
		HourBucket:        hourBucket,
		HTTPBytesOut:      snap.HTTPBytesOut,
		HTTPRequests:      snap.HTTPRequests,
		WebSocketBytesOut: snap.WebSocketBytesOut,
		WebSocketMessages: snap.WebSocketMessages,
		TotalBytesOut:     snap.HTTPBytesOut + snap.WebSocketBytesOut,
		PeakClients:       snap.ConnectedClients,
	}

	if err := db.DB.Save(&hourly).Error; err != nil {
		logger.Errorf("update hourly metrics: %v", err)
		return
	}
	s.lastHourBucket = hourBucket
}

func (s *Service) cleanup() {
	// Keep detailed snapshots for 7 days
	cutoff := time.Now().AddDate(0, 0, -7)

	result := db.DB.Where("timestamp < ?", cutoff).Delete(&Snapshot{})
	if result.Error != nil {
		logger.Errorf("clean up old snapshots: %v", result.Error)
	} else if result.RowsAffected > 0 {
		logger.Infof("cleaned up %d old metrics snapshots", result.RowsAffected)
	}
}

func (s *Service) GetCurrent() (Snapshot, error) {
	return s.current(), nil
}

func (s *Service) GetHourly(hours int) ([]Hourly, error) {
	var rows []Hourly
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	err := db.DB.Where("hour_bucket >= ?", cutoff).
		Order("hour_bucket DESC").
		Find(&rows).Error
	return rows, err
}
