package pipeline

import (
	"fmt"
	"time"
)

// Progress reports pipeline progress.
type Progress struct {
	Phase       string
	RunID       string
	GamesTotal  int
	GamesCached int
	GamesDone   int
	GamesFailed int
	StartTime   time.Time
	Error       error
}

// ProgressFunc is called with progress updates. It may be called from
// several goroutines, but never concurrently.
type ProgressFunc func(Progress)

// Phases reported through ProgressFunc.
const (
	PhaseEvaluate = "evaluate"
	PhaseRederive = "rederive"
	PhaseDone     = "done"
	PhaseError    = "error"
)

// FormatBytes formats bytes as human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats duration as human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// DefaultProgressFunc prints progress to stdout.
func DefaultProgressFunc(p Progress) {
	switch p.Phase {
	case PhaseEvaluate, PhaseRederive:
		todo := p.GamesTotal - p.GamesCached
		pct := float64(100)
		if todo > 0 {
			pct = float64(p.GamesDone+p.GamesFailed) / float64(todo) * 100
		}
		fmt.Printf("\r[%s] %d / %d games (%.1f%%), %d cached, %d failed",
			p.Phase, p.GamesDone+p.GamesFailed, todo, pct, p.GamesCached, p.GamesFailed)
	case PhaseDone:
		elapsed := time.Since(p.StartTime)
		fmt.Printf("\n[Done] %d games analysed, %d cached, %d failed (%s)\n",
			p.GamesDone, p.GamesCached, p.GamesFailed, FormatDuration(elapsed))
	case PhaseError:
		fmt.Printf("\n[Error] %v\n", p.Error)
	}
}
