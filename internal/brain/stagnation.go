package brain

// TopicShiftText replaces every window slot when the conversation stalls.
const TopicShiftText = "New topic: AI trends 2026"

// StagnationDetector notices a speaker echoing the previous speaker late in a run.
// It is a heuristic: only byte-identical outputs count as an echo.
type StagnationDetector struct {
	total int
	fired bool
}

func NewStagnationDetector(totalIterations int) *StagnationDetector {
	return &StagnationDetector{total: totalIterations}
}

// Active reports whether iteration is past 60% of the run.
func (d *StagnationDetector) Active(iteration int) bool {
	return iteration*5 > d.total*3
}

// Check compares output with the output held for the previous speaker's slot.
// On the first echo after the activation point it overwrites every slot with
// TopicShiftText and returns true. It fires at most once.
func (d *StagnationDetector) Check(iteration int, output, previousOutput string, window []string) bool {
	if d.fired || !d.Active(iteration) || output != previousOutput {
		return false
	}
	for i := range window {
		window[i] = TopicShiftText
	}
	d.fired = true
	return true
}

func (d *StagnationDetector) Fired() bool {
	return d.fired
}
