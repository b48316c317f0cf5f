package experiment

import (
	"fmt"

	"github.com/tuttyfrutyee/experanto/interpolators"
)

// TrialWindow is one stimulus trial with its position on the screen
// device's global timeline. The time window follows the half-open
// frame convention: Start is the display time of the trial's first
// frame, End the display time of the first frame after it (or the
// device's valid end for the final trial).
type TrialWindow struct {
	Trial      interpolators.Trial
	TrialIndex int
	Start      float64
	End        float64
}

// TrialsByTier lists the trials of the named screen device carrying
// the given tier label (train/validation/test), optionally restricted
// to one trial modality (pass interpolators.TrialUnknown for all).
func (e *Experiment) TrialsByTier(screenDevice, tier string, modality interpolators.TrialModality) ([]TrialWindow, error) {
	dev, ok := e.devices[screenDevice]
	if !ok {
		return nil, fmt.Errorf("experiment %s: no device %q", e.root, screenDevice)
	}
	scr, ok := dev.(*interpolators.ScreenInterpolator)
	if !ok {
		return nil, fmt.Errorf("experiment %s: device %q is not a screen device", e.root, screenDevice)
	}

	timestamps := scr.Timestamps()
	var out []TrialWindow
	for i, trial := range scr.Trials() {
		if modality != interpolators.TrialUnknown && trial.Modality() != modality {
			continue
		}
		if label, _ := trial.Meta("tier").(string); label != tier {
			continue
		}
		first := trial.FirstFrameIdx()
		end := scr.ValidInterval().End
		if next := first + trial.NumFrames(); next < len(timestamps) {
			end = timestamps[next]
		}
		out = append(out, TrialWindow{
			Trial:      trial,
			TrialIndex: i,
			Start:      timestamps[first],
			End:        end,
		})
	}
	return out, nil
}
