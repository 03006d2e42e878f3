package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderledger/internal/domain"
)

func TestSpecFor_Table(t *testing.T) {
	tests := []struct {
		tt   domain.TransitionType
		from domain.OrderStatus
		to   domain.OrderStatus
		next domain.TransitionType
	}{
		{domain.ConfirmedToProcessing, domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.ProcessingToShipped},
		{domain.ProcessingToShipped, domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.ShippedToDelivered},
		{domain.ShippedToDelivered, domain.OrderStatusShipped, domain.OrderStatusDelivered, ""},
		{domain.PendingToCancelled, domain.OrderStatusPending, domain.OrderStatusCanceled, ""},
	}
	for _, tc := range tests {
		t.Run(string(tc.tt), func(t *testing.T) {
			spec, ok := SpecFor(tc.tt)
			require.True(t, ok)
			assert.Equal(t, tc.from, spec.From)
			assert.Equal(t, tc.to, spec.To)
			assert.Equal(t, tc.next, spec.Next)
		})
	}
}

func TestSpecFor_Unknown(t *testing.T) {
	_, ok := SpecFor("DELIVERED_TO_RETURNED")
	assert.False(t, ok)
}

func TestCheckApplicable_StatusMismatch(t *testing.T) {
	o := &domain.Order{Status: domain.OrderStatusShipped}

	var pre *domain.PreconditionError
	err := CheckApplicable(o, domain.ConfirmedToProcessing)
	require.ErrorAs(t, err, &pre)
	assert.Contains(t, pre.Reason, "SHIPPED")
}

func TestCheckApplicable_UnknownType(t *testing.T) {
	o := &domain.Order{Status: domain.OrderStatusPending}

	var pre *domain.PreconditionError
	err := CheckApplicable(o, "BOGUS")
	assert.ErrorAs(t, err, &pre)
}

func TestConfirmedToProcessing_PaymentGate(t *testing.T) {
	tests := []struct {
		name    string
		method  domain.PaymentMethod
		payment domain.PaymentStatus
		wantErr bool
	}{
		{"paypal pending blocks", domain.PaymentMethodPayPal, domain.PaymentStatusPending, true},
		{"credit card failed blocks", domain.PaymentMethodCreditCard, domain.PaymentStatusFailed, true},
		{"paypal completed passes", domain.PaymentMethodPayPal, domain.PaymentStatusCompleted, false},
		{"cod pending passes", domain.PaymentMethodCOD, domain.PaymentStatusPending, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := &domain.Order{
				Status:        domain.OrderStatusConfirmed,
				PaymentMethod: tc.method,
				PaymentStatus: tc.payment,
			}
			err := CheckApplicable(o, domain.ConfirmedToProcessing)
			if tc.wantErr {
				var pre *domain.PreconditionError
				assert.ErrorAs(t, err, &pre)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPendingToCancelled_PaidOrderIsProtected(t *testing.T) {
	o := &domain.Order{
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodPayPal,
		PaymentStatus: domain.PaymentStatusCompleted,
	}

	var pre *domain.PreconditionError
	err := CheckApplicable(o, domain.PendingToCancelled)
	require.ErrorAs(t, err, &pre)

	o.PaymentStatus = domain.PaymentStatusPending
	assert.NoError(t, CheckApplicable(o, domain.PendingToCancelled))
}
