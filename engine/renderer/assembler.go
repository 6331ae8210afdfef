package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pass"
)

// record fans the passes out to the worker pool, one task per pass, and waits for all of them.
// Each task writes only its own worker's output and error slot, so the merge below depends on the
// declared pass order and never on completion order. Consecutive passes with the same target
// share a render pass of the primary stream.
//
// Parameters:
//   - slot: the frame slot being recorded; its streams must be reset
//   - in: the read-only frame inputs shared by every pass
//
// Returns:
//   - error: the pass errors joined in pass order, or the primary stream error
func (r *renderer) record(slot *frame.Slot, in *pass.Inputs) error {
	// A WaitGroup gives the per-frame barrier; the pool's own Wait blocks until workers idle out.
	var wg sync.WaitGroup
	for i, p := range r.passes {
		wg.Add(1)
		out := slot.Workers[i].Output()
		r.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				r.passErrs[i] = runPass(p, in, out)
				return nil, nil
			},
		})
	}
	wg.Wait()

	var errs []error
	for i, err := range r.passErrs {
		if err != nil {
			errs = append(errs, fmt.Errorf("pass %s: %w", r.passes[i].Name(), err))
			r.passErrs[i] = nil
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for i, p := range r.passes {
		r.targets[i] = pass.TargetOf(p, in)
	}
	primary := slot.Primary
	if err := primary.Begin(); err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	// One render pass per run of consecutive passes that share a target.
	r.secondaries = slot.Secondaries(r.secondaries[:0])
	start := 0
	for i := 1; i <= len(r.targets); i++ {
		if i < len(r.targets) && r.targets[i] == r.targets[start] {
			continue
		}
		primary.BeginRenderPass(r.targets[start])
		primary.ExecuteSecondary(r.secondaries[start:i]...)
		primary.EndRenderPass()
		start = i
	}
	if err := primary.End(); err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	return nil
}

// runPass records p and converts a panic into an error so one broken pass cannot take the frame
// loop down with it. A failed pass may leave its stream open; the stream is ended so the slot can
// be reset on its next frame.
func runPass(p pass.Pass, in *pass.Inputs, out pass.Output) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if err != nil {
			if eerr := out.Stream.End(); eerr != nil && !errors.Is(eerr, gpu.ErrNotRecording) {
				err = errors.Join(err, eerr)
			}
		}
	}()
	return p.Record(in, out)
}
