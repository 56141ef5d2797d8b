package common

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"
)

// Metrics accumulates stream counters for one pass over a capture. It is safe
// to read from the progress printer while the pass updates it.
type Metrics struct {
	mu         sync.Mutex
	start      time.Time
	end        time.Time
	bytes      int64
	totalBytes int64
	frames     int64
	packets    int64
	resyncs    int64
	skipped    int64

	checksumFailures int64
	discardedFrames  int64
	discardedBytes   int64
	fillPackets      int64
	skippedPackets   int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
		m.end = time.Time{}
	}
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

func (m *Metrics) AddPacket(size int64) {
	if size <= 0 {
		return
	}
	m.mu.Lock()
	m.bytes += size
	m.packets++
	m.mu.Unlock()
}

// AddFrame records a frame read or written.
func (m *Metrics) AddFrame(size int64) {
	m.mu.Lock()
	m.frames++
	if size > 0 {
		m.bytes += size
	}
	m.mu.Unlock()
}

func (m *Metrics) AddBytes(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.bytes += n
	m.mu.Unlock()
}

func (m *Metrics) IncResync() {
	m.mu.Lock()
	m.resyncs++
	m.mu.Unlock()
}

// AddSkipped records bytes discarded while hunting for a sync marker.
func (m *Metrics) AddSkipped(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.skipped += n
	m.mu.Unlock()
}

func (m *Metrics) IncChecksumFailure() {
	m.mu.Lock()
	m.checksumFailures++
	m.mu.Unlock()
}

// AddDiscarded records frames and bytes dropped before packet alignment.
func (m *Metrics) AddDiscarded(frames, bytes int64) {
	m.mu.Lock()
	m.discardedFrames += frames
	m.discardedBytes += bytes
	m.mu.Unlock()
}

func (m *Metrics) IncFillPacket() {
	m.mu.Lock()
	m.fillPackets++
	m.mu.Unlock()
}

func (m *Metrics) IncSkippedPacket() {
	m.mu.Lock()
	m.skippedPackets++
	m.mu.Unlock()
}

func (m *Metrics) SetTotalBytes(total int64) {
	if total < 0 {
		total = 0
	}
	m.mu.Lock()
	m.totalBytes = total
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Duration:         m.elapsedLocked(),
		Bytes:            m.bytes,
		TotalBytes:       m.totalBytes,
		Frames:           m.frames,
		Packets:          m.packets,
		Resyncs:          m.resyncs,
		SkippedBytes:     m.skipped,
		ChecksumFailures: m.checksumFailures,
		DiscardedFrames:  m.discardedFrames,
		DiscardedBytes:   m.discardedBytes,
		FillPackets:      m.fillPackets,
		SkippedPackets:   m.skippedPackets,
	}
}

func (m *Metrics) elapsedLocked() time.Duration {
	if m.start.IsZero() {
		return 0
	}
	if !m.end.IsZero() {
		return m.end.Sub(m.start)
	}
	return time.Since(m.start)
}

type MetricsSnapshot struct {
	Duration         time.Duration
	Bytes            int64
	TotalBytes       int64
	Frames           int64
	Packets          int64
	Resyncs          int64
	SkippedBytes     int64
	ChecksumFailures int64
	DiscardedFrames  int64
	DiscardedBytes   int64
	FillPackets      int64
	SkippedPackets   int64
}

// Summary renders the counters on one line for the end-of-run log.
func (s MetricsSnapshot) Summary() string {
	return fmt.Sprintf("frames=%d packets=%d bytes=%s resyncs=%d skipped=%s checksum_failures=%d discarded_frames=%d discarded_bytes=%d fill_packets=%d skipped_packets=%d elapsed=%s",
		s.Frames, s.Packets, FormatBytes(s.Bytes), s.Resyncs, FormatBytes(s.SkippedBytes),
		s.ChecksumFailures, s.DiscardedFrames, s.DiscardedBytes, s.FillPackets, s.SkippedPackets,
		s.Duration.Round(time.Millisecond))
}

func (s MetricsSnapshot) ThroughputBytesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Duration.Seconds()
}

func (s MetricsSnapshot) Completion() float64 {
	if s.TotalBytes <= 0 {
		return 0
	}
	ratio := float64(s.Bytes) / float64(s.TotalBytes)
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div := float64(unit)
	exp := 0
	for n := float64(b) / div; n >= unit && exp < 6; n /= unit {
		div *= unit
		exp++
	}
	prefixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	return fmt.Sprintf("%.2f %s", float64(b)/div, prefixes[exp])
}

func formatProgressLine(s MetricsSnapshot) string {
	throughput := s.ThroughputBytesPerSecond() / (1024 * 1024)
	if s.TotalBytes > 0 {
		pct := s.Completion() * 100
		if math.IsNaN(pct) || math.IsInf(pct, 0) {
			pct = 0
		}
		return fmt.Sprintf("Progress: %6.2f%% (%s / %s) %d frames %.2f MiB/s", pct, FormatBytes(s.Bytes), FormatBytes(s.TotalBytes), s.Frames, throughput)
	}
	return fmt.Sprintf("Processed: %s %d frames %.2f MiB/s", FormatBytes(s.Bytes), s.Frames, throughput)
}

func StartProgressPrinter(w io.Writer, m *Metrics, interval time.Duration) func() {
	if m == nil || w == nil {
		return func() {}
	}
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		lastLen := 0
		for {
			select {
			case <-ticker.C:
				line := formatProgressLine(m.Snapshot())
				pad := lastLen - len(line)
				if pad > 0 {
					line += strings.Repeat(" ", pad)
				}
				fmt.Fprintf(w, "\r%s", line)
				lastLen = len(line)
			case <-done:
				if lastLen > 0 {
					fmt.Fprintf(w, "\r%s\r\n", strings.Repeat(" ", lastLen))
				}
				return
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
