package status

// Status is the canonical lifecycle state of a dossier. Past the normalizer
// boundary a job status is always one of these closed values; raw producer
// strings never leak into the typed core.
type Status string

const (
	Draft            Status = "DRAFT"
	InProgress       Status = "IN_PROGRESS"
	ToReview         Status = "TO_REVIEW"
	ReadyForPrint    Status = "READY_FOR_PRINT"
	Printing         Status = "PRINTING"
	Printed          Status = "PRINTED"
	ReadyForDelivery Status = "READY_FOR_DELIVERY"
	OutForDelivery   Status = "OUT_FOR_DELIVERY"
	Delivered        Status = "DELIVERED"
	Completed        Status = "COMPLETED"
)

var allStatuses = []Status{
	Draft,
	InProgress,
	ToReview,
	ReadyForPrint,
	Printing,
	Printed,
	ReadyForDelivery,
	OutForDelivery,
	Delivered,
	Completed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, s := range allStatuses {
		set[s] = struct{}{}
	}
	return set
}()

// All returns the canonical statuses in workflow order.
func All() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Parse checks strict membership in the canonical set.
func Parse(value string) (Status, bool) {
	s := Status(value)
	_, ok := statusSet[s]
	return s, ok
}

// IsCanonical reports whether s belongs to the closed status set.
func (s Status) IsCanonical() bool {
	_, ok := statusSet[s]
	return ok
}

// IsTerminal reports whether s accepts no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Completed
}

func (s Status) String() string {
	return string(s)
}

// MachineType identifies the press a dossier is assigned to. It is set at
// creation and partitions which printer-role dashboards see the job.
type MachineType string

const (
	MachineRoland MachineType = "ROLAND"
	MachineXerox  MachineType = "XEROX"
	MachineOther  MachineType = "OTHER"
)

// ParseMachineType checks strict membership in the machine type set.
func ParseMachineType(value string) (MachineType, bool) {
	switch m := MachineType(value); m {
	case MachineRoland, MachineXerox, MachineOther:
		return m, true
	default:
		return m, false
	}
}

// Role identifies the actor kind initiating a transition.
type Role string

const (
	RolePreparer       Role = "preparer"
	RoleRolandOperator Role = "roland-operator"
	RoleXeroxOperator  Role = "xerox-operator"
	RoleDeliverer      Role = "deliverer"
)

// ParseRole checks strict membership in the role set.
func ParseRole(value string) (Role, bool) {
	switch r := Role(value); r {
	case RolePreparer, RoleRolandOperator, RoleXeroxOperator, RoleDeliverer:
		return r, true
	default:
		return r, false
	}
}

// IsPrinterOperator reports whether r runs one of the presses.
func (r Role) IsPrinterOperator() bool {
	return r == RoleRolandOperator || r == RoleXeroxOperator
}

// Machine returns the press an operator role is bound to. Non-operator roles
// have no machine.
func (r Role) Machine() (MachineType, bool) {
	switch r {
	case RoleRolandOperator:
		return MachineRoland, true
	case RoleXeroxOperator:
		return MachineXerox, true
	default:
		return "", false
	}
}

// Operates reports whether an operator role may run jobs assigned to the given
// machine. Jobs on MachineOther are runnable by any operator.
func (r Role) Operates(machine MachineType) bool {
	if !r.IsPrinterOperator() {
		return false
	}
	if machine == MachineOther {
		return true
	}
	m, _ := r.Machine()
	return m == machine
}
