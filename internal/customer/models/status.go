package models

import dErrors "customerhub/pkg/domain-errors"

// Status is the lifecycle state of a customer.
type Status string

const (
	StatusPendingValidation     Status = "PENDING_VALIDATION"
	StatusActive                Status = "ACTIVE"
	StatusReservationInProgress Status = "RESERVATION_IN_PROGRESS"
	StatusReservationConfirmed  Status = "RESERVATION_CONFIRMED"
	StatusBlocked               Status = "BLOCKED"
	StatusInactive              Status = "INACTIVE"
)

// AllStatuses lists every lifecycle state in declaration order.
var AllStatuses = []Status{
	StatusPendingValidation,
	StatusActive,
	StatusReservationInProgress,
	StatusReservationConfirmed,
	StatusBlocked,
	StatusInactive,
}

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingValidation, StatusActive, StatusReservationInProgress,
		StatusReservationConfirmed, StatusBlocked, StatusInactive:
		return true
	}
	return false
}

// ParseStatus validates external input (query filters, persisted rows).
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown customer status: "+s)
	}
	return st, nil
}

// Operation names a guarded customer operation.
type Operation string

const (
	OpActivate            Operation = "activate"
	OpBlock               Operation = "block"
	OpUnblock             Operation = "unblock"
	OpStartReservation    Operation = "start_reservation"
	OpConfirmReservation  Operation = "confirm_reservation"
	OpFinalizeReservation Operation = "finalize_reservation"
	OpDeactivate          Operation = "deactivate"
	OpReactivate          Operation = "reactivate"
	OpMutate              Operation = "modify"
)

// transition pairs the states an operation may start from with the state it
// lands in. An empty Target means the operation does not change state.
type transition struct {
	From   []Status
	Target Status
}

// guards is the single table of lifecycle rules. Each operation owns its own
// precondition; there is no shared adjacency matrix.
var guards = map[Operation]transition{
	OpActivate: {
		From:   []Status{StatusPendingValidation},
		Target: StatusActive,
	},
	OpStartReservation: {
		From:   []Status{StatusActive},
		Target: StatusReservationInProgress,
	},
	OpConfirmReservation: {
		From:   []Status{StatusReservationInProgress},
		Target: StatusReservationConfirmed,
	},
	OpFinalizeReservation: {
		From:   []Status{StatusReservationConfirmed},
		Target: StatusActive,
	},
	OpBlock: {
		From: []Status{StatusPendingValidation, StatusActive, StatusReservationInProgress,
			StatusReservationConfirmed, StatusBlocked},
		Target: StatusBlocked,
	},
	OpUnblock: {
		From:   []Status{StatusBlocked},
		Target: StatusActive,
	},
	OpDeactivate: {
		From: []Status{StatusPendingValidation, StatusActive, StatusReservationInProgress,
			StatusReservationConfirmed, StatusInactive},
		Target: StatusInactive,
	},
	OpReactivate: {
		From:   []Status{StatusInactive},
		Target: StatusActive,
	},
	OpMutate: {
		From: []Status{StatusPendingValidation, StatusActive, StatusReservationInProgress,
			StatusReservationConfirmed},
	},
}

// Guard checks whether op may run from current and returns the target state.
func Guard(op Operation, current Status) (Status, error) {
	t, ok := guards[op]
	if !ok {
		return "", dErrors.New(dErrors.CodeInternal, "unknown operation: "+string(op))
	}
	for _, s := range t.From {
		if s == current {
			if t.Target == "" {
				return current, nil
			}
			return t.Target, nil
		}
	}
	allowed := make([]Status, len(t.From))
	copy(allowed, t.From)
	return "", stateErr(op, current, allowed)
}

// AllowedFrom returns the source states of op, for documentation and tests.
func AllowedFrom(op Operation) []Status {
	t := guards[op]
	out := make([]Status, len(t.From))
	copy(out, t.From)
	return out
}

// CanMakePayments reports whether a customer in s may be charged.
func (s Status) CanMakePayments() bool {
	return s == StatusActive || s == StatusReservationInProgress
}

// IsMutable reports whether personal data, address and cards may change in s.
func (s Status) IsMutable() bool {
	_, err := Guard(OpMutate, s)
	return err == nil
}
