package advancement

import (
	"sort"
	"time"
)

// CriterionProgress records when (if ever) a single criterion was obtained.
type CriterionProgress struct {
	ObtainedTime *time.Time
}

func (c *CriterionProgress) IsObtained() bool {
	return c.ObtainedTime != nil
}

// Obtain stamps the criterion with now. Once obtained it stays obtained;
// repeat calls report false.
func (c *CriterionProgress) Obtain(now time.Time) bool {
	if c.ObtainedTime != nil {
		return false
	}
	t := now
	c.ObtainedTime = &t
	return true
}

// ObtainAt force-sets the timestamp, used when restoring saved progress.
func (c *CriterionProgress) ObtainAt(at time.Time) {
	t := at
	c.ObtainedTime = &t
}

func (c *CriterionProgress) Reset() {
	c.ObtainedTime = nil
}

// Progress is one player's state against one advancement. Done caches the
// requirements formula over the obtained criteria and is re-derived after
// every mutation.
type Progress struct {
	Criteria map[string]*CriterionProgress
	Done     bool
}

func NewProgress() *Progress {
	return &Progress{Criteria: make(map[string]*CriterionProgress)}
}

func (p *Progress) criterion(name string) *CriterionProgress {
	c, ok := p.Criteria[name]
	if !ok {
		c = &CriterionProgress{}
		p.Criteria[name] = c
	}
	return c
}

// Grant obtains the named criterion, reporting whether it transitioned.
// Names outside the definition still get an entry; evaluation only reads
// names the requirements reference.
func (p *Progress) Grant(name string) bool {
	return p.criterion(name).Obtain(time.Now())
}

// GrantAt is Grant with an explicit timestamp.
func (p *Progress) GrantAt(name string, at time.Time) bool {
	c := p.criterion(name)
	if c.IsObtained() {
		return false
	}
	c.ObtainAt(at)
	return true
}

// Revoke clears the named criterion, reporting whether it transitioned.
// Callers must re-derive Done afterwards.
func (p *Progress) Revoke(name string) bool {
	c, ok := p.Criteria[name]
	if !ok || !c.IsObtained() {
		return false
	}
	c.Reset()
	return true
}

// UpdateDone re-derives the cached Done flag from req.
func (p *Progress) UpdateDone(req Requirements) {
	p.Done = req.Test(p.ObtainedNames())
}

func (p *Progress) ObtainedNames() map[string]struct{} {
	out := make(map[string]struct{}, len(p.Criteria))
	for name, c := range p.Criteria {
		if c.IsObtained() {
			out[name] = struct{}{}
		}
	}
	return out
}

// RemainingNames lists the referenced criteria not yet obtained, sorted.
func (p *Progress) RemainingNames(req Requirements) []string {
	obtained := p.ObtainedNames()
	var out []string
	for name := range req.Names() {
		if _, ok := obtained[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Percent is the satisfied fraction of req given the obtained criteria.
func (p *Progress) Percent(req Requirements) float32 {
	return req.Percent(p.ObtainedNames())
}

// EarliestTime returns the oldest obtained timestamp, or nil when nothing
// is obtained.
func (p *Progress) EarliestTime() *time.Time {
	var earliest *time.Time
	for _, c := range p.Criteria {
		if c.ObtainedTime == nil {
			continue
		}
		if earliest == nil || c.ObtainedTime.Before(*earliest) {
			earliest = c.ObtainedTime
		}
	}
	if earliest == nil {
		return nil
	}
	t := *earliest
	return &t
}
