package event

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "valid task completion",
			raw:  `{"merchant_id":"acme","client":"backend","project":"billing","type":"report.Task","ref":"42","status":"done","message":"done"}`,
		},
		{
			name: "valid non-task event without status",
			raw:  `{"merchant_id":"acme","client":"backend","project":"billing","type":"3ds.update","ref":"42"}`,
		},
		{
			name:    "missing ref",
			raw:     `{"merchant_id":"acme","client":"backend","project":"billing","type":"3ds.update"}`,
			wantErr: true,
		},
		{
			name:    "missing merchant_id",
			raw:     `{"client":"backend","project":"billing","type":"3ds.update","ref":"42"}`,
			wantErr: true,
		},
		{
			name:    "missing project",
			raw:     `{"merchant_id":"acme","client":"backend","type":"3ds.update","ref":"42"}`,
			wantErr: true,
		},
		{
			name:    "unknown client",
			raw:     `{"merchant_id":"acme","client":"mobile","project":"billing","type":"3ds.update","ref":"42"}`,
			wantErr: true,
		},
		{
			name:    "task completion missing status",
			raw:     `{"merchant_id":"acme","client":"backend","project":"billing","type":"report.Task","ref":"42","message":"done"}`,
			wantErr: true,
		},
		{
			name:    "task completion missing message",
			raw:     `{"merchant_id":"acme","client":"backend","project":"billing","type":"report.Task","ref":"42","status":"done"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `report finished`,
			wantErr: true,
		},
		{
			name:    "empty body",
			raw:     ``,
			wantErr: true,
		},
		{
			name: "ping skips field validation",
			raw:  `{"type":"ping"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse() expected error, got %+v", msg)
				}
				if !errors.Is(err, ErrMalformedPayload) {
					t.Errorf("Parse() error = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
		})
	}
}

func TestParseFields(t *testing.T) {
	raw := `{"merchant_id":"acme","client":"backend","project":"billing","type":"report.Task","ref":"42","status":"done","message":"report ready"}`

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	if msg.MerchantID != "acme" {
		t.Errorf("MerchantID = %q, want %q", msg.MerchantID, "acme")
	}
	if msg.Client != ClientBackend {
		t.Errorf("Client = %q, want %q", msg.Client, ClientBackend)
	}
	if msg.Project != "billing" {
		t.Errorf("Project = %q, want %q", msg.Project, "billing")
	}
	if msg.Ref != "42" {
		t.Errorf("Ref = %q, want %q", msg.Ref, "42")
	}
	if msg.Status != StatusDone {
		t.Errorf("Status = %q, want %q", msg.Status, StatusDone)
	}
	if !msg.IsTaskCompletion() {
		t.Error("IsTaskCompletion() = false, want true")
	}
	if msg.IsPing() {
		t.Error("IsPing() = true, want false")
	}
}

func TestIsTaskCompletion(t *testing.T) {
	tests := []struct {
		typ  string
		want bool
	}{
		{"report.Task", true},
		{"payment_request.Task", true},
		{"3ds.update", false},
		{"ping", false},
	}

	for _, tt := range tests {
		m := Message{Type: tt.typ}
		if got := m.IsTaskCompletion(); got != tt.want {
			t.Errorf("IsTaskCompletion(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}
