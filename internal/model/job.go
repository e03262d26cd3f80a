package model

import (
	"fmt"

	"vroomgo/internal/buffer"
)

// JobKind distinguishes standalone jobs from the two halves of a shipment.
type JobKind uint8

const (
	Single JobKind = iota
	Pickup
	Delivery
)

func (k JobKind) String() string {
	switch k {
	case Pickup:
		return "pickup"
	case Delivery:
		return "delivery"
	}
	return "job"
}

// MaxPriority is the highest accepted job priority.
const MaxPriority = 100

// Job is one task to serve. For a Single job, Delivery is loaded at the
// vehicle start and dropped here while Pickup is collected here and carried
// to the vehicle end. For shipment halves the amount lives in Pickup (on the
// pickup) or Delivery (on the delivery).
type Job struct {
	ID          uint64
	Kind        JobKind
	Location    Location
	Setup       int64
	Service     int64
	Delivery    buffer.Amount
	Pickup      buffer.Amount
	Skills      Skills
	Priority    int
	TimeWindows []TimeWindow
	Description string
}

// Validate checks the fields that do not depend on the rest of the problem.
func (j Job) Validate() error {
	if !j.Location.Valid() {
		return fmt.Errorf("%s %d: missing location", j.Kind, j.ID)
	}
	if j.Setup < 0 || j.Service < 0 {
		return fmt.Errorf("%s %d: negative setup or service", j.Kind, j.ID)
	}
	if j.Priority < 0 || j.Priority > MaxPriority {
		return fmt.Errorf("%s %d: priority %d outside [0, %d]", j.Kind, j.ID, j.Priority, MaxPriority)
	}
	for _, tw := range j.TimeWindows {
		if err := tw.Validate(); err != nil {
			return fmt.Errorf("%s %d: %w", j.Kind, j.ID, err)
		}
	}
	return nil
}

// ShipmentStep is the pickup or delivery side of a Shipment.
type ShipmentStep struct {
	ID          uint64
	Location    Location
	Setup       int64
	Service     int64
	TimeWindows []TimeWindow
	Description string
}

// Shipment is a pickup and a delivery that must be served in that order by
// the same vehicle.
type Shipment struct {
	Pickup   ShipmentStep
	Delivery ShipmentStep
	Amount   buffer.Amount
	Skills   Skills
	Priority int
}

// Jobs splits the shipment into its two job halves.
func (s Shipment) Jobs() (Job, Job) {
	half := func(st ShipmentStep, kind JobKind) Job {
		return Job{
			ID:          st.ID,
			Kind:        kind,
			Location:    st.Location,
			Setup:       st.Setup,
			Service:     st.Service,
			Skills:      s.Skills,
			Priority:    s.Priority,
			TimeWindows: st.TimeWindows,
			Description: st.Description,
		}
	}
	p := half(s.Pickup, Pickup)
	p.Pickup = s.Amount.Clone()
	d := half(s.Delivery, Delivery)
	d.Delivery = s.Amount.Clone()
	return p, d
}
