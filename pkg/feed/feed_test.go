package feed

import (
	"testing"

	"github.com/mpetrenko/orderlens/pkg/model"
)

func TestDecodeNotice(t *testing.T) {
	body := []byte(`{
		"order_id": 42,
		"order_number": "ORD-0042",
		"old_status": "PENDING",
		"new_status": "PICKING",
		"changed_by": "Dana Reyes",
		"correlation_id": "11f2c5a0-9a2f-4a5e-8e61-000000000001",
		"timestamp": "2026-08-30T10:15:00Z"
	}`)

	n, err := decodeNotice(body)
	if err != nil {
		t.Fatalf("decodeNotice: %v", err)
	}
	if n.OrderID != 42 {
		t.Errorf("OrderID = %d, want 42", n.OrderID)
	}
	if n.NewStatus != model.StatusPicking {
		t.Errorf("NewStatus = %s, want %s", n.NewStatus, model.StatusPicking)
	}
	if n.ChangedBy != "Dana Reyes" {
		t.Errorf("ChangedBy = %q", n.ChangedBy)
	}
}

func TestDecodeNoticeMissingOrderID(t *testing.T) {
	if _, err := decodeNotice([]byte(`{"new_status":"PICKING"}`)); err == nil {
		t.Fatal("expected error for notice without order_id")
	}
}

func TestDecodeNoticeMalformed(t *testing.T) {
	if _, err := decodeNotice([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
