package engine

import "sort"

// Phase is one of the fixed, ordered boot/shutdown phases every peripheral
// and backend hooks into (spec.md §4.1).
type Phase int

const (
	// PreBoot1 registers command-line arguments.
	PreBoot1 Phase = iota
	// PreBoot2 resolves arguments that depend on other arguments.
	PreBoot2
	// HWInit allocates and zero-initializes register banks.
	HWInit
	// OnExitPre frees heap buffers and unmaps backing files.
	OnExitPre
)

type hook struct {
	priority int
	seq      int
	fn       func() error
}

// LifecycleRegistry runs hooks in fixed phase order; within a phase, hooks
// with a smaller priority number run first, and hooks of equal priority run
// in registration order (spec.md §4.1: "priority 10 for DPPI, 100 for most
// peripherals, 200 for peripherals that depend on a backend registration").
type LifecycleRegistry struct {
	hooks [4][]hook
	seq   int
}

// NewLifecycleRegistry returns an empty registry.
func NewLifecycleRegistry() *LifecycleRegistry {
	return &LifecycleRegistry{}
}

// Register adds fn to run during phase, ordered by priority.
func (r *LifecycleRegistry) Register(phase Phase, priority int, fn func() error) {
	r.seq++
	r.hooks[phase] = append(r.hooks[phase], hook{priority: priority, seq: r.seq, fn: fn})
}

// Run executes every hook registered for phase, in priority then
// registration order, stopping at the first error.
func (r *LifecycleRegistry) Run(phase Phase) error {
	hooks := append([]hook(nil), r.hooks[phase]...)
	sort.SliceStable(hooks, func(i, j int) bool {
		if hooks[i].priority != hooks[j].priority {
			return hooks[i].priority < hooks[j].priority
		}
		return hooks[i].seq < hooks[j].seq
	})
	for _, h := range hooks {
		if err := h.fn(); err != nil {
			return err
		}
	}
	return nil
}

// Priority constants named in spec.md §4.1.
const (
	PriorityDPPI           = 10
	PriorityDefault        = 100
	PriorityBackendDepends = 200
)
