package model

import (
	"errors"
	"testing"
)

func TestStatus_IsValid(t *testing.T) {
	for _, tc := range []struct {
		status Status
		want   bool
	}{
		{StatusDraft, true},
		{StatusPendingReview, true},
		{StatusSentForSignature, true},
		{StatusPartiallySigned, true},
		{StatusFullyExecuted, true},
		{StatusActive, true},
		{StatusCompleted, true},
		{StatusCancelled, true},
		{Status(""), false},
		{Status("signed"), false},
	} {
		if got := tc.status.IsValid(); got != tc.want {
			t.Errorf("Status(%q).IsValid() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestStatus_IsSignable(t *testing.T) {
	for _, tc := range []struct {
		status Status
		want   bool
	}{
		{StatusDraft, false},
		{StatusPendingReview, false},
		{StatusSentForSignature, true},
		{StatusPartiallySigned, true},
		{StatusFullyExecuted, false},
		{StatusCancelled, false},
	} {
		if got := tc.status.IsSignable(); got != tc.want {
			t.Errorf("Status(%q).IsSignable() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestSignerRole_IsValid(t *testing.T) {
	for _, tc := range []struct {
		role SignerRole
		want bool
	}{
		{RoleClient, true},
		{RoleSpeaker, true},
		{RoleAdmin, true},
		{SignerRole(""), false},
		{SignerRole("witness"), false},
	} {
		if got := tc.role.IsValid(); got != tc.want {
			t.Errorf("SignerRole(%q).IsValid() = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestVarType_IsValid(t *testing.T) {
	for _, typ := range []VarType{"", VarText, VarTextarea, VarEmail, VarNumber, VarCurrency, VarDate} {
		if !typ.IsValid() {
			t.Errorf("VarType(%q).IsValid() = false, want true", typ)
		}
	}
	if VarType("percent").IsValid() {
		t.Error("VarType(percent).IsValid() = true, want false")
	}
}

func TestCanTransition(t *testing.T) {
	for _, tc := range []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusSentForSignature, true},
		{StatusDraft, StatusPendingReview, true},
		{StatusDraft, StatusCancelled, true},
		{StatusPendingReview, StatusSentForSignature, true},
		{StatusSentForSignature, StatusPartiallySigned, true},
		{StatusSentForSignature, StatusFullyExecuted, true},
		{StatusPartiallySigned, StatusFullyExecuted, true},
		{StatusPartiallySigned, StatusCancelled, true},
		{StatusFullyExecuted, StatusActive, true},
		{StatusActive, StatusCompleted, true},

		{StatusDraft, StatusFullyExecuted, false},
		{StatusSentForSignature, StatusDraft, false},
		{StatusPartiallySigned, StatusSentForSignature, false},
		{StatusFullyExecuted, StatusCancelled, false},
		{StatusFullyExecuted, StatusPartiallySigned, false},
		{StatusCancelled, StatusDraft, false},
		{StatusCompleted, StatusActive, false},
	} {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCheckTransition(t *testing.T) {
	if err := CheckTransition(StatusDraft, StatusSentForSignature); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := CheckTransition(StatusCancelled, StatusSentForSignature)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.From != StatusCancelled || te.To != StatusSentForSignature {
		t.Errorf("unexpected TransitionError %+v", te)
	}
}

func TestSignedStatus(t *testing.T) {
	both := []SignerRole{RoleClient, RoleSpeaker}
	for _, tc := range []struct {
		name     string
		current  Status
		required []SignerRole
		signed   []SignerRole
		want     Status
	}{
		{"nothing signed", StatusSentForSignature, both, nil, StatusSentForSignature},
		{"client only", StatusSentForSignature, both, []SignerRole{RoleClient}, StatusPartiallySigned},
		{"speaker only", StatusSentForSignature, both, []SignerRole{RoleSpeaker}, StatusPartiallySigned},
		{"both", StatusPartiallySigned, both, []SignerRole{RoleSpeaker, RoleClient}, StatusFullyExecuted},
		{"client only required", StatusSentForSignature, []SignerRole{RoleClient}, []SignerRole{RoleClient}, StatusFullyExecuted},
		{"unrequired role ignored", StatusSentForSignature, []SignerRole{RoleClient}, []SignerRole{RoleAdmin}, StatusSentForSignature},
		{"countersign outstanding", StatusPartiallySigned, []SignerRole{RoleClient, RoleSpeaker, RoleAdmin}, both, StatusPartiallySigned},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := SignedStatus(tc.current, tc.required, tc.signed); got != tc.want {
				t.Errorf("SignedStatus() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestContract_RequiredRoles(t *testing.T) {
	c := &Contract{}
	if got := c.RequiredRoles(); len(got) != 1 || got[0] != RoleClient {
		t.Errorf("no speaker: got %v, want [client]", got)
	}
	c.SpeakerName = "Grace Hopper"
	if got := c.RequiredRoles(); len(got) != 2 || got[1] != RoleSpeaker {
		t.Errorf("with speaker: got %v, want [client speaker]", got)
	}
	c.RequiresCountersign = true
	if !c.RequiresRole(RoleAdmin) {
		t.Error("expected admin to be required when countersign is set")
	}
	c.SpeakerName = ""
	if c.RequiresRole(RoleSpeaker) {
		t.Error("speaker must not be required without a speaker name")
	}
}

func TestTypedErrors_Is(t *testing.T) {
	for _, tc := range []struct {
		err    error
		target error
	}{
		{&TemplateInvalidError{Reason: "no sections"}, ErrTemplateInvalid},
		{&MissingFieldsError{Labels: []string{"Client Name"}}, ErrMissingRequiredField},
		{&TransitionError{From: StatusDraft, To: StatusActive}, ErrInvalidTransition},
		{&NotSignableError{Reason: ReasonAlreadySigned}, ErrNotSignable},
		{&PersistenceError{Op: "insert", Err: errors.New("boom")}, ErrPersistence},
	} {
		if !errors.Is(tc.err, tc.target) {
			t.Errorf("errors.Is(%T, %v) = false", tc.err, tc.target)
		}
		if errors.Is(tc.err, ErrNotFound) {
			t.Errorf("errors.Is(%T, ErrNotFound) = true", tc.err)
		}
	}
}

func TestPersistenceError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &PersistenceError{Op: "update contract", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected PersistenceError to unwrap to inner error")
	}
	if err.Error() != "update contract: connection reset" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestMissingFieldsError_Message(t *testing.T) {
	err := &MissingFieldsError{Labels: []string{"Client Name", "Event Date"}}
	if got, want := err.Error(), "missing required fields: Client Name, Event Date"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestSignedRoles(t *testing.T) {
	sigs := []*Signature{{SignerType: RoleSpeaker}, {SignerType: RoleClient}}
	got := SignedRoles(sigs)
	if len(got) != 2 || got[0] != RoleSpeaker || got[1] != RoleClient {
		t.Errorf("SignedRoles() = %v", got)
	}
}
