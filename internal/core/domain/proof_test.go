package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseProof(t *testing.T) {
	proof, err := ParseProof("current_password", " secret ")
	if err != nil {
		t.Fatalf("ParseProof returned error: %v", err)
	}
	if p, ok := proof.(CurrentPassword); !ok || p.Password != " secret " {
		t.Fatalf("unexpected proof %#v", proof)
	}

	proof, err = ParseProof("EMAILED_CODE", " 123456 ")
	if err != nil {
		t.Fatalf("ParseProof returned error: %v", err)
	}
	if p, ok := proof.(EmailedCode); !ok || p.Code != "123456" {
		t.Fatalf("unexpected proof %#v", proof)
	}
	if proof.Method() != MethodEmailedCode {
		t.Fatalf("unexpected method %q", proof.Method())
	}

	_, err = ParseProof("sms", "1")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected InvalidRequest, got %v", err)
	}
	if fields := FieldsOf(err); len(fields) != 1 || fields[0].Field != "method" {
		t.Fatalf("unexpected fields %+v", fields)
	}
}

func TestVerificationCodeState(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lease := now.Add(30 * time.Second)
	code := VerificationCode{
		ExpiresAt:    now.Add(10 * time.Minute),
		ClaimID:      "claim",
		ClaimedUntil: &lease,
	}

	if code.IsExpired(now.Add(10 * time.Minute)) {
		t.Fatal("code must still be valid exactly at expiry")
	}
	if !code.IsExpired(now.Add(10*time.Minute + time.Millisecond)) {
		t.Fatal("code must be expired after expiry")
	}
	if !code.IsClaimed(now) || code.IsClaimed(lease) {
		t.Fatal("claim must hold only until its lease ends")
	}
	if code.IsConsumed() {
		t.Fatal("fresh code must not be consumed")
	}
}
