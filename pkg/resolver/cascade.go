// Package resolver finds elements in an unstable accessibility tree by trying
// ordered strategies until one succeeds.
package resolver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/logger"
	"github.com/limecash/lime-e2e/pkg/session"
)

// Strategy is one way of locating a target.
type Strategy struct {
	Name   string
	Locate func(timeout time.Duration) (*session.Element, error)
}

// Attempt records one strategy tried during a cascade.
type Attempt struct {
	Strategy string
	Err      error // nil for the winning attempt
}

// Resolution is the outcome of a successful cascade.
type Resolution struct {
	Element  *session.Element
	Strategy string    // name of the winning strategy
	Attempts []Attempt // every strategy tried, in order, ending with the winner
}

// Failed returns the attempts that did not resolve.
func (r *Resolution) Failed() []Attempt {
	if len(r.Attempts) == 0 {
		return nil
	}
	return r.Attempts[:len(r.Attempts)-1]
}

// ResolveByCascade tries strategies in order, giving each perAttempt, and
// returns the first element found. Later strategies are never tried once one
// succeeds. A missing session aborts immediately; exhausting the list fails
// with ErrNoMatchingElement naming every strategy tried.
func ResolveByCascade(target string, strategies []Strategy, perAttempt time.Duration) (*Resolution, error) {
	log := logger.L().With(zap.String("target", target))
	res := &Resolution{}

	for _, st := range strategies {
		el, err := st.Locate(perAttempt)
		if err == nil && el != nil {
			res.Element = el
			res.Strategy = st.Name
			res.Attempts = append(res.Attempts, Attempt{Strategy: st.Name})
			log.Debug("resolved", zap.String("strategy", st.Name), zap.Int("failed", len(res.Attempts)-1))
			return res, nil
		}
		if err == nil {
			err = fmt.Errorf("%s returned no element", st.Name)
		}
		if errors.Is(err, core.ErrNotConnected) {
			return nil, err
		}
		res.Attempts = append(res.Attempts, Attempt{Strategy: st.Name, Err: err})
		log.Debug("strategy failed, trying next", zap.String("strategy", st.Name), zap.Error(err))
	}

	tried := make([]string, len(res.Attempts))
	for i, a := range res.Attempts {
		tried[i] = a.Strategy
	}
	return nil, core.ErrNoMatchingElement.
		WithMessage(fmt.Sprintf("no element matched %q; tried [%s]", target, strings.Join(tried, ", "))).
		WithDetails(map[string]interface{}{"target": target, "attempted": tried})
}

// FromLocator waits for the locator to be displayed.
func (r *Resolver) FromLocator(loc core.Locator) Strategy {
	return Strategy{
		Name: loc.String(),
		Locate: func(timeout time.Duration) (*session.Element, error) {
			return r.s.WaitForElement(loc, timeout)
		},
	}
}

// Clickable wraps a strategy so that a displayed but non-interactive match fails.
func (r *Resolver) Clickable(st Strategy) Strategy {
	return Strategy{
		Name: st.Name,
		Locate: func(timeout time.Duration) (*session.Element, error) {
			el, err := st.Locate(timeout)
			if err != nil {
				return nil, err
			}
			ok, err := el.IsClickable()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%s matched a non-clickable element", st.Name)
			}
			return el, nil
		},
	}
}

// Scan enumerates every element matching loc once and returns the first that
// is interactive and satisfies match. The timeout is not used; a scan is a
// single pass over the current tree.
func (r *Resolver) Scan(name string, loc core.Locator, match func(core.ElementAttributes) bool) Strategy {
	return Strategy{
		Name: name,
		Locate: func(time.Duration) (*session.Element, error) {
			els, err := r.s.FindElements(loc)
			if err != nil {
				return nil, err
			}
			for _, el := range els {
				attrs, err := el.Attributes()
				if err != nil {
					if errors.Is(err, core.ErrNotConnected) {
						return nil, err
					}
					continue
				}
				if attrs.Interactive() && match(attrs) {
					return el, nil
				}
			}
			return nil, fmt.Errorf("%s: none of %d candidates matched", name, len(els))
		},
	}
}

// FromLocators turns locators into strategies, in order.
func (r *Resolver) FromLocators(locs ...core.Locator) []Strategy {
	out := make([]Strategy, len(locs))
	for i, loc := range locs {
		out[i] = r.FromLocator(loc)
	}
	return out
}
