package workflow

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/logger"
	"github.com/limecash/lime-e2e/pkg/selector"
	"github.com/limecash/lime-e2e/pkg/session"
)

// Pipeline step names, in the order they run.
const (
	StepConfirmTestID = "confirm-test-id"
	StepExactLabel    = "exact-label"
	StepCandidates    = "candidates"
	StepCoordinateTap = "coordinate-tap"
)

// modalButtons is everything in the tree that may be a dialog action.
var modalButtons = core.Locator{
	Using: core.UsingXPath,
	Value: `//XCUIElementTypeButton | //XCUIElementTypeOther[@accessible="true"]`,
	Label: "by-scan:modal-buttons",
}

// ModalStep is one way of confirming the dialog. Run reports whether it
// acted; only then is the post-condition checked.
type ModalStep struct {
	Name string
	Run  func() (bool, error)
}

// ModalOutcome records which step dismissed the dialog.
type ModalOutcome struct {
	Step string
	Taps int // Coordinate taps issued along the way
}

// ModalCandidate is a possible dialog action seen while enumerating buttons.
type ModalCandidate struct {
	core.ElementAttributes
	Element *session.Element
}

// ModalCandidates reads every element that may be a dialog action.
// Elements that vanish while being read are skipped.
func (a *Auth) ModalCandidates() ([]ModalCandidate, error) {
	els, err := a.s.FindElements(modalButtons)
	if err != nil {
		return nil, err
	}
	var out []ModalCandidate
	for _, el := range els {
		attrs, err := el.Attributes()
		if err != nil {
			if errors.Is(err, core.ErrNotConnected) {
				return nil, err
			}
			continue
		}
		out = append(out, ModalCandidate{ElementAttributes: attrs, Element: el})
	}
	return out, nil
}

// pickConfirm returns the last interactive candidate labelled exactly label.
// The dialog renders after the screen it covers, so later wins.
func pickConfirm(cands []ModalCandidate, label string) *ModalCandidate {
	for i := len(cands) - 1; i >= 0; i-- {
		c := cands[i]
		if c.Interactive() && c.NameOrLabelEquals(label) {
			return &cands[i]
		}
	}
	return nil
}

// ModalSteps returns the confirmation pipeline. taps counts coordinate taps.
func (a *Auth) ModalSteps(taps *int) []ModalStep {
	label := a.opts.Anchors.LogoutLabel
	clickFirst := func(loc core.Locator) func() (bool, error) {
		return func() (bool, error) {
			el, err := a.s.WaitForElement(loc, a.opts.Timeouts.Element)
			if err != nil {
				return false, err
			}
			return true, el.Click()
		}
	}

	return []ModalStep{
		{Name: StepConfirmTestID, Run: clickFirst(selector.ByIdentifier(a.opts.Anchors.ConfirmLogoutTestID))},
		{Name: StepExactLabel, Run: clickFirst(selector.ByRoleName(selector.RoleOther, label))},
		{Name: StepCandidates, Run: func() (bool, error) {
			cands, err := a.ModalCandidates()
			if err != nil {
				return false, err
			}
			c := pickConfirm(cands, label)
			if c == nil {
				return false, fmt.Errorf("no clickable %q among %d candidates", label, len(cands))
			}
			return true, c.Element.Click()
		}},
		{Name: StepCoordinateTap, Run: func() (bool, error) {
			w, h, err := a.g.ScreenSize()
			if err != nil {
				return false, err
			}
			x, y := w/2+a.opts.Modal.OffsetX, h/2+a.opts.Modal.OffsetY
			*taps++
			if err := a.g.TapAt(x, y); err != nil {
				return false, err
			}
			return true, nil
		}},
	}
}

// ConfirmModal confirms the logout dialog. Steps run in order; after each one
// that acts, the dialog description must disappear before the step counts as
// a success. Exhausting the pipeline fails with ErrModalNotDismissed.
func (a *Auth) ConfirmModal() (*ModalOutcome, error) {
	sleep(a.opts.Timeouts.ModalRender)

	taps := 0
	var tried []string
	for _, step := range a.ModalSteps(&taps) {
		tried = append(tried, step.Name)
		log := logger.L().With(zap.String("step", step.Name))

		acted, err := step.Run()
		if err != nil {
			if errors.Is(err, core.ErrNotConnected) {
				return nil, err
			}
			log.Debug("modal step failed", zap.Error(err))
			continue
		}
		if !acted {
			continue
		}

		gone, err := a.s.WaitForAbsence(a.modalAnchor(), a.opts.Timeouts.ModalRender)
		if err != nil {
			return nil, err
		}
		if gone {
			return &ModalOutcome{Step: step.Name, Taps: taps}, nil
		}
		log.Debug("modal still open after step")
	}

	return nil, core.ErrModalNotDismissed.WithDetails(map[string]interface{}{
		"attempted": tried,
		"taps":      taps,
	})
}
