package kernels

import (
	"errors"
	"fmt"
	"maps"
	"strconv"

	"github.com/gogpu/interop"
)

// Ladder describes how a program sizes one kernel entry.
type Ladder struct {
	// Domain returns the dispatch domain for a work-group size.
	Domain func(group int) interop.WorkDomain

	// Defines returns build defines that depend on the group size, in
	// addition to the entry's size define.
	Defines func(group int) map[string]string

	// Local returns the dynamic local memory a dispatch will bind.
	Local func(group int) int
}

// Fitted is a kernel built with the largest work-group size the device
// accepts, together with its fitted dispatch domain.
type Fitted struct {
	Program *interop.Program
	Kernel  *interop.BoundKernel
	Group   int
	Domain  interop.WorkDomain
}

// Release releases the kernel and its program.
func (f *Fitted) Release() {
	f.Kernel.Release()
	f.Program.Release()
}

// floor returns the last rung for e: square 2D blocks stop at 4, 1D groups
// at a single item.
func (e Entry) floor() int {
	if e.Group[1] > 1 {
		return 4
	}
	return 1
}

// Rungs returns the work-group sizes tried for e, largest first.
func (e Entry) Rungs() []int {
	var rungs []int
	for g := e.Group[0]; g >= e.floor(); g /= 2 {
		rungs = append(rungs, g)
	}
	return rungs
}

// Build compiles entry at its preferred work-group size and steps down
// the ladder, halving the entry's size define, while the device rejects
// the group shape or the local memory it needs. Other errors end the
// search.
func Build(s *interop.Session, entry string, l Ladder) (*Fitted, error) {
	e, ok := Entries[entry]
	if !ok {
		return nil, &interop.CompileError{Entry: entry, Log: "unknown kernel entry"}
	}
	var last error
	for _, group := range e.Rungs() {
		f, err := buildRung(s, e, group, l)
		if err == nil {
			interop.Logger().Debug("kernels: fitted", "entry", entry, e.Define, group, "domain", f.Domain.String())
			return f, nil
		}
		if !errors.Is(err, interop.ErrUnsupportedWorkSize) && !errors.Is(err, interop.ErrInsufficientLocalMemory) {
			return nil, err
		}
		interop.Logger().Debug("kernels: group rejected", "entry", entry, e.Define, group, "err", err)
		last = err
	}
	return nil, fmt.Errorf("kernels: no work-group size fits %s: %w", entry, last)
}

func buildRung(s *interop.Session, e Entry, group int, l Ladder) (*Fitted, error) {
	defs := map[string]string{e.Define: strconv.Itoa(group)}
	if l.Defines != nil {
		maps.Copy(defs, l.Defines(group))
	}
	prog, err := s.Dispatcher.Build(e.File, FormatDefines(defs))
	if err != nil {
		return nil, err
	}
	k, err := s.Dispatcher.CreateKernel(prog, e.Name)
	if err != nil {
		prog.Release()
		return nil, err
	}
	f := &Fitted{Program: prog, Kernel: k, Group: group}
	if l.Local != nil {
		if err := interop.CheckLocalMemory(l.Local(group), s.Context.Limits(), k.Info()); err != nil {
			f.Release()
			return nil, err
		}
	}
	if l.Domain != nil {
		f.Domain, err = l.Domain(group).Fit(s.Dispatcher.GroupLimits(k))
		if err != nil {
			f.Release()
			return nil, err
		}
	}
	return f, nil
}
