package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressBar tracks a sequence of scripts or files being processed.
type ProgressBar struct {
	mu        sync.Mutex
	out       io.Writer
	label     string
	total     int
	current   int
	startTime time.Time

	successCount int
	failureCount int
	skipCount    int
	currentItem  string
}

// NewProgressBar creates a progress bar writing to Output.
func NewProgressBar(label string, total int) *ProgressBar {
	return &ProgressBar{
		out:       Output,
		label:     label,
		total:     total,
		startTime: time.Now(),
	}
}

// Outcome of one processed item.
type Outcome int

const (
	Succeeded Outcome = iota
	Failed
	Skipped
)

// Step records the outcome of one item and redraws the bar.
func (p *ProgressBar) Step(item string, outcome Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	p.currentItem = item
	switch outcome {
	case Succeeded:
		p.successCount++
	case Failed:
		p.failureCount++
	case Skipped:
		p.skipCount++
	}

	p.render()
}

// Counts returns succeeded, failed and skipped totals.
func (p *ProgressBar) Counts() (int, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.successCount, p.failureCount, p.skipCount
}

// Finish prints the summary line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s %s completed in %s\n",
		ColorSuccess("✓"), p.label, formatDuration(time.Since(p.startTime)))
	fmt.Fprintf(p.out, "  %s %d succeeded\n", ColorSuccess("✓"), p.successCount)
	if p.skipCount > 0 {
		fmt.Fprintf(p.out, "  %s %d skipped\n", ColorDim("-"), p.skipCount)
	}
	if p.failureCount > 0 {
		fmt.Fprintf(p.out, "  %s %d failed\n", ColorError("✗"), p.failureCount)
	}
}

func (p *ProgressBar) render() {
	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100
	}
	if percentage > 100 {
		percentage = 100
	}

	barWidth := 30
	filled := int(percentage / 100 * float64(barWidth))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	item := p.currentItem
	if len(item) > 40 {
		item = "..." + item[len(item)-37:]
	}

	fmt.Fprintf(p.out, "\r\033[K%s %s %.0f%% [%d/%d] %s",
		ColorProgress("►"), bar, percentage, p.current, p.total, item)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
