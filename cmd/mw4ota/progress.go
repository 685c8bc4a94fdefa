package main

import (
	"github.com/pterm/pterm"

	"github.com/moffa90/go-mw4ota/ota"
)

// progressBar renders ota.Progress on a pterm progress bar.
// It is driven from the updater goroutine only.
type progressBar struct {
	log   *logger
	bar   *pterm.ProgressbarPrinter
	shown int
	phase string
}

func newProgressBar(log *logger) *progressBar {
	return &progressBar{log: log}
}

func (p *progressBar) update(pr ota.Progress) {
	if pr.Phase != p.phase {
		p.phase = pr.Phase
		switch pr.Phase {
		case ota.PhaseChecking:
			p.log.Info("checking device and manifest versions")
		case ota.PhaseDownloading:
			p.log.Info("downloading firmware image")
		case ota.PhaseFinalizing:
			if p.bar != nil {
				p.bar.UpdateTitle("Waiting for device")
			}
		}
	}

	if pr.Phase == ota.PhaseChecking || pr.Phase == ota.PhaseDownloading {
		return
	}

	if p.bar == nil {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(100).
			WithTitle("Transferring").
			WithRemoveWhenDone(false).
			Start()
		if err != nil {
			p.log.Debug("progress bar unavailable", "error", err)
			return
		}
		p.bar = bar
	}

	if delta := pr.Percent - p.shown; delta > 0 {
		p.bar.Add(delta)
		p.shown = pr.Percent
	}

	if pr.Phase == ota.PhaseComplete {
		p.stop()
	}
}

// stop ends the bar; safe to call more than once.
func (p *progressBar) stop() {
	if p.bar != nil && p.bar.IsActive {
		_, _ = p.bar.Stop()
	}
}
