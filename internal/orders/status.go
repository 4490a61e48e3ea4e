package orders

import "github.com/ariefcatur/go-order-core/internal/apperr"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
	PaymentFailed PaymentStatus = "failed"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusCompleted: true, StatusCanceled: true},
	StatusCompleted: {},
	StatusCanceled:  {},
}

var validNextPayment = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentUnpaid: {PaymentPaid: true, PaymentFailed: true},
	PaymentPaid:   {},
	PaymentFailed: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validNextPayment[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) IsTerminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

// Next lists the statuses reachable from s.
func (s Status) Next() []Status {
	out := make([]Status, 0, 2)
	for _, to := range []Status{StatusCompleted, StatusCanceled} {
		if validNext[s][to] {
			out = append(out, to)
		}
	}
	return out
}

func (p PaymentStatus) Valid() bool {
	_, ok := validNextPayment[p]
	return ok
}

func (p PaymentStatus) IsTerminal() bool {
	return p.Valid() && len(validNextPayment[p]) == 0
}

// ParseStatus converts a wire value; empty and unknown values are rejected.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", apperr.Validation("unknown status %q", v)
	}
	return s, nil
}

func ParsePaymentStatus(v string) (PaymentStatus, error) {
	p := PaymentStatus(v)
	if !p.Valid() {
		return "", apperr.Validation("unknown payment_status %q", v)
	}
	return p, nil
}
