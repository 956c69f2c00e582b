package viewing

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/evcraddock/viewing-scheduler/internal/db"
	"github.com/evcraddock/viewing-scheduler/internal/feasibility"
	"github.com/evcraddock/viewing-scheduler/internal/geotime"
	"github.com/evcraddock/viewing-scheduler/internal/notify"
	"github.com/evcraddock/viewing-scheduler/internal/property"
	"github.com/evcraddock/viewing-scheduler/internal/reschedule"
	"github.com/evcraddock/viewing-scheduler/internal/tenant"
)

// Store persists viewings and answers confirmed-calendar queries.
type Store interface {
	Insert(v *Viewing) (*Viewing, error)
	GetByID(id int64) (*Viewing, error)
	List(opts ListOptions) ([]*Viewing, error)
	Transition(v *Viewing, from Status) error
	Calendar(opts ListOptions) (feasibility.Calendar, error)
}

// Properties looks up properties.
type Properties interface {
	GetByID(id int64) (*property.Property, error)
	List(opts property.ListOptions) ([]*property.Property, error)
}

// Tenants looks up tenants.
type Tenants interface {
	GetByID(id int64) (*tenant.Tenant, error)
}

// Deps wires a Manager.
type Deps struct {
	Store      Store
	Properties Properties
	Tenants    Tenants
	Checker    *feasibility.Checker
	TenantRule *feasibility.TenantRule
	Finder     *reschedule.Finder
	Events     notify.Publisher
}

// Manager owns the viewing lifecycle. Operations that check and then
// mutate an agent's calendar hold that agent's write lock throughout.
type Manager struct {
	store      Store
	properties Properties
	tenants    Tenants
	checker    *feasibility.Checker
	tenantRule *feasibility.TenantRule
	finder     *reschedule.Finder
	events     notify.Publisher
	locks      *agentLocks
}

// NewManager creates a lifecycle manager. A nil Events discards events.
func NewManager(d Deps) *Manager {
	events := d.Events
	if events == nil {
		events = notify.Discard{}
	}
	return &Manager{
		store:      d.Store,
		properties: d.Properties,
		tenants:    d.Tenants,
		checker:    d.Checker,
		tenantRule: d.TenantRule,
		finder:     d.Finder,
		events:     events,
		locks:      newAgentLocks(),
	}
}

func parseTime(hhmm string) (int, error) {
	m, err := geotime.ParseTime(hhmm)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	return m, nil
}

// Request creates a pending viewing for tenantID at propertyID. Requests
// failing the agent feasibility check or the tenant rule are rejected
// with an *InfeasibleError and nothing is stored.
func (m *Manager) Request(tenantID, propertyID int64, requested string) (*Viewing, error) {
	start, err := parseTime(requested)
	if err != nil {
		return nil, err
	}

	prop, err := m.properties.GetByID(propertyID)
	if err != nil {
		return nil, err
	}
	ten, err := m.tenants.GetByID(tenantID)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.lock(prop.AgentID)
	defer unlock()

	cal, err := m.store.Calendar(ListOptions{})
	if err != nil {
		return nil, err
	}

	verdict, err := m.checker.CheckSlot(prop.AgentID, prop.ID, start, cal)
	if err != nil {
		return nil, err
	}
	if !verdict.Feasible {
		slog.Debug("viewing request infeasible", "property_id", prop.ID, "time", requested, "reason", verdict.Reason)
		return nil, newInfeasible(verdict)
	}

	tolerance := m.tenantRule.Tolerance(ten.TravelTolerance)
	if tv := m.tenantRule.Check(ten.ID, tolerance, prop.Postcode, start, cal); !tv.Feasible {
		slog.Debug("viewing request rejected by tenant rule", "tenant_id", ten.ID, "time", requested, "reason", tv.Reason)
		return nil, newInfeasible(tv)
	}

	v := &Viewing{
		TenantID:        ten.ID,
		AgentID:         prop.AgentID,
		PropertyID:      prop.ID,
		RequestedTime:   geotime.FormatTime(start),
		Status:          StatusPending,
		DurationMinutes: m.checker.Policy().DurationMinutes,
	}
	travel, hasPrevious := m.checker.TravelFromPrevious(prop.AgentID, prop.Postcode, start, cal)
	if hasPrevious {
		v.TravelTime = &travel
	}
	v.FeasibilityStatus = feasibility.Label(verdict, travel, hasPrevious, tolerance)

	saved, err := m.store.Insert(v)
	if err != nil {
		return nil, fmt.Errorf("saving viewing: %w", err)
	}

	slog.Info("viewing requested", "viewing_id", saved.ID, "agent_id", saved.AgentID, "time", saved.RequestedTime,
		"feasibility", saved.FeasibilityStatus)
	m.publish(notify.EventRequested, saved, saved.RequestedTime, "")
	return saved, nil
}

// Confirm accepts a pending viewing at its requested time.
func (m *Manager) Confirm(id int64) (*Viewing, error) {
	return m.commit(id, StatusPending, notify.EventConfirmed, func(v *Viewing) string {
		return v.RequestedTime
	})
}

// AcceptSuggested confirms a suggested viewing at its suggested time.
func (m *Manager) AcceptSuggested(id int64) (*Viewing, error) {
	return m.commit(id, StatusSuggested, notify.EventSuggestionAccepted, func(v *Viewing) string {
		return v.SuggestedTime
	})
}

// commit moves a viewing from `from` to confirmed at the time chosen by
// at, re-checking feasibility against the current calendar.
func (m *Manager) commit(id int64, from Status, event notify.Type, at func(*Viewing) string) (*Viewing, error) {
	v, unlock, err := m.lockViewing(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if v.Status != from {
		return nil, invalidTransition(v, StatusConfirmed)
	}

	start, err := parseTime(at(v))
	if err != nil {
		return nil, err
	}
	cal, err := m.store.Calendar(ListOptions{AgentID: v.AgentID})
	if err != nil {
		return nil, err
	}
	verdict, err := m.checker.CheckSlot(v.AgentID, v.PropertyID, start, cal)
	if err != nil {
		return nil, err
	}
	if !verdict.Feasible {
		slog.Debug("confirmation infeasible", "viewing_id", v.ID, "reason", verdict.Reason)
		return nil, newInfeasible(verdict)
	}

	next := *v
	next.Status = StatusConfirmed
	next.ConfirmedTime = geotime.FormatTime(start)
	if err := m.store.Transition(&next, from); err != nil {
		return nil, err
	}

	slog.Info("viewing confirmed", "viewing_id", v.ID, "agent_id", v.AgentID, "time", next.ConfirmedTime)
	m.publish(event, &next, next.ConfirmedTime, "")
	return m.store.GetByID(id)
}

// Suggest proposes the first feasible slot strictly after the requested
// time. When none exists the viewing stays pending and ErrNoAlternative
// is returned.
func (m *Manager) Suggest(id int64) (*Viewing, reschedule.Slot, error) {
	v, unlock, err := m.lockViewing(id)
	if err != nil {
		return nil, reschedule.Slot{}, err
	}
	defer unlock()

	if v.Status != StatusPending {
		return nil, reschedule.Slot{}, invalidTransition(v, StatusSuggested)
	}

	start, err := parseTime(v.RequestedTime)
	if err != nil {
		return nil, reschedule.Slot{}, err
	}
	slot, found, err := m.search(v.AgentID, v.PropertyID, start, false, true)
	if err != nil {
		return nil, reschedule.Slot{}, err
	}
	if !found {
		slog.Info("no alternative slot", "viewing_id", v.ID, "after", v.RequestedTime)
		m.publish(notify.EventNoAlternative, v, v.RequestedTime, ErrNoAlternative.Error())
		return v, reschedule.Slot{}, ErrNoAlternative
	}

	next := *v
	next.Status = StatusSuggested
	next.SuggestedTime = slot.Time
	if err := m.store.Transition(&next, StatusPending); err != nil {
		return nil, reschedule.Slot{}, err
	}

	slog.Info("viewing suggested", "viewing_id", v.ID, "time", slot.Time, "reason", slot.Reason)
	m.publish(notify.EventSuggested, &next, slot.Time, slot.Reason)

	saved, err := m.store.GetByID(id)
	if err != nil {
		return nil, reschedule.Slot{}, err
	}
	return saved, slot, nil
}

// Decline rejects a pending viewing.
func (m *Manager) Decline(id int64) (*Viewing, error) {
	return m.decline(id, StatusPending, notify.EventDeclined)
}

// DeclineSuggested rejects a suggested viewing and clears its suggestion.
func (m *Manager) DeclineSuggested(id int64) (*Viewing, error) {
	return m.decline(id, StatusSuggested, notify.EventSuggestionDeclined)
}

func (m *Manager) decline(id int64, from Status, event notify.Type) (*Viewing, error) {
	v, unlock, err := m.lockViewing(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if v.Status != from {
		return nil, invalidTransition(v, StatusDeclined)
	}

	next := *v
	next.Status = StatusDeclined
	next.SuggestedTime = ""
	if err := m.store.Transition(&next, from); err != nil {
		return nil, err
	}

	slog.Info("viewing declined", "viewing_id", v.ID, "from", from)
	m.publish(event, &next, v.EffectiveTime(), "")
	return m.store.GetByID(id)
}

// lockViewing takes the write lock of the viewing's agent and returns the
// viewing as read under that lock.
func (m *Manager) lockViewing(id int64) (*Viewing, func(), error) {
	v, err := m.store.GetByID(id)
	if err != nil {
		return nil, nil, err
	}

	unlock := m.locks.lock(v.AgentID)
	v, err = m.store.GetByID(id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return v, unlock, nil
}

// search runs the slot finder for propertyID. Callers hold the agent lock.
func (m *Manager) search(agentID, propertyID int64, start int, sameClusterOnly, after bool) (reschedule.Slot, bool, error) {
	prop, err := m.properties.GetByID(propertyID)
	if err != nil {
		return reschedule.Slot{}, false, err
	}
	all, err := m.properties.List(property.ListOptions{})
	if err != nil {
		return reschedule.Slot{}, false, err
	}
	cal, err := m.store.Calendar(ListOptions{AgentID: agentID})
	if err != nil {
		return reschedule.Slot{}, false, err
	}

	slot, found := m.finder.Find(reschedule.Query{
		AgentID:         agentID,
		Postcode:        prop.Postcode,
		Requested:       start,
		SameClusterOnly: sameClusterOnly,
		After:           after,
	}, cal, property.Postcodes(all))
	return slot, found, nil
}

// Check evaluates the agent feasibility of propertyID at hhmm without
// changing anything. An unknown property yields an infeasible verdict.
func (m *Manager) Check(propertyID int64, hhmm string) (feasibility.Verdict, error) {
	start, err := parseTime(hhmm)
	if err != nil {
		return feasibility.Verdict{}, err
	}

	prop, err := m.properties.GetByID(propertyID)
	if errors.Is(err, db.ErrNotFound) {
		return m.checker.CheckSlot(0, propertyID, start, nil)
	}
	if err != nil {
		return feasibility.Verdict{}, err
	}

	unlock := m.locks.rlock(prop.AgentID)
	defer unlock()

	cal, err := m.store.Calendar(ListOptions{AgentID: prop.AgentID})
	if err != nil {
		return feasibility.Verdict{}, err
	}
	return m.checker.CheckSlot(prop.AgentID, prop.ID, start, cal)
}

// FindAlternative returns the requested time when feasible, else the
// first alternative slot. ErrNoAlternative means the day is exhausted.
func (m *Manager) FindAlternative(propertyID int64, hhmm string, sameClusterOnly bool) (reschedule.Slot, error) {
	start, err := parseTime(hhmm)
	if err != nil {
		return reschedule.Slot{}, err
	}
	prop, err := m.properties.GetByID(propertyID)
	if err != nil {
		return reschedule.Slot{}, err
	}

	unlock := m.locks.rlock(prop.AgentID)
	defer unlock()

	slot, found, err := m.search(prop.AgentID, prop.ID, start, sameClusterOnly, false)
	if err != nil {
		return reschedule.Slot{}, err
	}
	if !found {
		return reschedule.Slot{}, ErrNoAlternative
	}
	return slot, nil
}

// AvailableSlots lists every grid slot the property's agent can take,
// labelled tight when travel from the preceding viewing exceeds the
// default tolerance.
func (m *Manager) AvailableSlots(propertyID int64) ([]AvailableSlot, error) {
	prop, err := m.properties.GetByID(propertyID)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.rlock(prop.AgentID)
	defer unlock()

	cal, err := m.store.Calendar(ListOptions{AgentID: prop.AgentID})
	if err != nil {
		return nil, err
	}

	tolerance := m.tenantRule.Tolerance(nil)
	var slots []AvailableSlot
	for _, start := range m.finder.Grid().Minutes() {
		verdict, err := m.checker.CheckSlot(prop.AgentID, prop.ID, start, cal)
		if err != nil {
			return nil, err
		}
		if !verdict.Feasible {
			continue
		}
		slot := AvailableSlot{Time: geotime.FormatTime(start)}
		travel, hasPrevious := m.checker.TravelFromPrevious(prop.AgentID, prop.Postcode, start, cal)
		if hasPrevious {
			slot.TravelMinutes = &travel
		}
		slot.Status = feasibility.Label(verdict, travel, hasPrevious, tolerance)
		slots = append(slots, slot)
	}
	return slots, nil
}

// FeasibilityOf recomputes the label of an existing viewing at the time it
// occupies, against the current calendar without the viewing itself.
func (m *Manager) FeasibilityOf(id int64) (*Assessment, error) {
	v, err := m.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	ten, err := m.tenants.GetByID(v.TenantID)
	if err != nil {
		return nil, err
	}
	prop, err := m.properties.GetByID(v.PropertyID)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.rlock(v.AgentID)
	defer unlock()

	at := v.EffectiveTime()
	start, err := parseTime(at)
	if err != nil {
		return nil, err
	}
	cal, err := m.store.Calendar(ListOptions{AgentID: v.AgentID})
	if err != nil {
		return nil, err
	}
	cal = cal.Without(v.ID)

	verdict, err := m.checker.CheckSlot(v.AgentID, v.PropertyID, start, cal)
	if err != nil {
		return nil, err
	}
	travel, hasPrevious := m.checker.TravelFromPrevious(v.AgentID, prop.Postcode, start, cal)

	a := &Assessment{
		ViewingID: v.ID,
		Time:      at,
		Status:    feasibility.Label(verdict, travel, hasPrevious, m.tenantRule.Tolerance(ten.TravelTolerance)),
		Reason:    verdict.Reason,
	}
	if hasPrevious {
		a.TravelMinutes = &travel
	}
	return a, nil
}

// Get returns a viewing by ID.
func (m *Manager) Get(id int64) (*Viewing, error) {
	return m.store.GetByID(id)
}

// List returns viewings matching opts.
func (m *Manager) List(opts ListOptions) ([]*Viewing, error) {
	if opts.Status != "" && !opts.Status.IsValid() {
		return nil, fmt.Errorf("invalid status filter: %q", opts.Status)
	}
	return m.store.List(opts)
}

// Calendar returns an agent's confirmed viewings in time order.
func (m *Manager) Calendar(agentID int64) ([]*Viewing, error) {
	unlock := m.locks.rlock(agentID)
	defer unlock()
	return m.store.List(ListOptions{Status: StatusConfirmed, AgentID: agentID})
}

func (m *Manager) publish(t notify.Type, v *Viewing, at, reason string) {
	err := m.events.Publish(notify.Event{
		Type:       t,
		ViewingID:  v.ID,
		TenantID:   v.TenantID,
		AgentID:    v.AgentID,
		PropertyID: v.PropertyID,
		Time:       at,
		Reason:     reason,
	})
	if err != nil {
		slog.Warn("publishing viewing event", "event", t, "viewing_id", v.ID, "error", err)
	}
}
