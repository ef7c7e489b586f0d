package models

import "testing"

func TestApplicationCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    ApplicationStatus
		to      ApplicationStatus
		allowed bool
	}{
		{"Pending to approved", ApplicationStatusPending, ApplicationStatusApproved, true},
		{"Pending to rejected", ApplicationStatusPending, ApplicationStatusRejected, true},
		{"Pending to withdrawn", ApplicationStatusPending, ApplicationStatusWithdrawn, true},
		{"Approved is terminal", ApplicationStatusApproved, ApplicationStatusRejected, false},
		{"Rejected is terminal", ApplicationStatusRejected, ApplicationStatusApproved, false},
		{"Withdrawn is terminal", ApplicationStatusWithdrawn, ApplicationStatusPending, false},
		{"No self transition", ApplicationStatusPending, ApplicationStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &TenancyApplication{Status: tt.from}
			if got := app.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestApplicationIsTerminal(t *testing.T) {
	tests := []struct {
		status   ApplicationStatus
		terminal bool
	}{
		{ApplicationStatusPending, false},
		{ApplicationStatusApproved, true},
		{ApplicationStatusRejected, true},
		{ApplicationStatusWithdrawn, true},
	}

	for _, tt := range tests {
		app := &TenancyApplication{Status: tt.status}
		if got := app.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestLeaseCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    LeaseStatus
		to      LeaseStatus
		allowed bool
	}{
		{"Active to notice given", LeaseStatusActive, LeaseStatusNoticeGiven, true},
		{"Active to terminated", LeaseStatusActive, LeaseStatusTerminated, true},
		{"Notice reverts to active", LeaseStatusNoticeGiven, LeaseStatusActive, true},
		{"Notice to terminated", LeaseStatusNoticeGiven, LeaseStatusTerminated, true},
		{"Terminated is terminal", LeaseStatusTerminated, LeaseStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lease := &Lease{Status: tt.from}
			if got := lease.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestPaymentCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{"Pending to processing", PaymentStatusPending, PaymentStatusProcessing, true},
		{"Pending skips to completed", PaymentStatusPending, PaymentStatusCompleted, false},
		{"Processing to completed", PaymentStatusProcessing, PaymentStatusCompleted, true},
		{"Processing to failed", PaymentStatusProcessing, PaymentStatusFailed, true},
		{"Completed is terminal", PaymentStatusCompleted, PaymentStatusFailed, false},
		{"Failed is terminal", PaymentStatusFailed, PaymentStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Status: tt.from}
			if got := p.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestNoticeCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    NoticeStatus
		to      NoticeStatus
		allowed bool
	}{
		{"Active to inspection scheduled", NoticeStatusActive, NoticeStatusInspectionScheduled, true},
		{"Active straight to completed", NoticeStatusActive, NoticeStatusCompleted, true},
		{"Active to cancelled", NoticeStatusActive, NoticeStatusCancelled, true},
		{"Inspection to completed", NoticeStatusInspectionScheduled, NoticeStatusCompleted, true},
		{"Inspection cannot be cancelled", NoticeStatusInspectionScheduled, NoticeStatusCancelled, false},
		{"Completed is terminal", NoticeStatusCompleted, NoticeStatusActive, false},
		{"Cancelled is terminal", NoticeStatusCancelled, NoticeStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &OffboardingNotice{Status: tt.from}
			if got := n.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestNoticeCanCancel(t *testing.T) {
	tests := []struct {
		name      string
		status    NoticeStatus
		initiator InitiatorRole
		want      bool
	}{
		{"Tenant active notice", NoticeStatusActive, InitiatorTenant, true},
		{"Landlord active notice", NoticeStatusActive, InitiatorLandlord, false},
		{"Tenant notice after inspection scheduled", NoticeStatusInspectionScheduled, InitiatorTenant, false},
		{"Tenant cancelled notice", NoticeStatusCancelled, InitiatorTenant, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &OffboardingNotice{Status: tt.status, InitiatedBy: tt.initiator}
			if got := n.CanCancel(); got != tt.want {
				t.Errorf("CanCancel() = %v, want %v", got, tt.want)
			}
		})
	}
}
