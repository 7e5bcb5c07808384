//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestCheckPincode_NoAuth(t *testing.T) {
	resp := doGet(t, "/api/pincodes/check?pincode=560034")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCheckPincode_MissingParam(t *testing.T) {
	resp := doGetWithAuth(t, "/api/pincodes/check")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Error == "" {
		t.Error("expected error message")
	}
}

func TestCheckPincode(t *testing.T) {
	tests := []struct {
		pincode string
		want    pincodeResponse
	}{
		{
			pincode: "560034",
			want: pincodeResponse{
				IsServiceable:  true,
				Pincode:        "560034",
				City:           "Bengaluru",
				State:          "Karnataka",
				DeliveryDays:   2,
				CODAvailable:   true,
				DeliveryCharge: 40,
			},
		},
		{
			pincode: "411001",
			want: pincodeResponse{
				IsServiceable:  true,
				Pincode:        "411001",
				City:           "Pune",
				State:          "Maharashtra",
				DeliveryTime:   "same day",
				CODAvailable:   true,
				DeliveryCharge: 99,
			},
		},
		{
			pincode: "110001",
			want: pincodeResponse{
				Pincode: "110001",
				Message: "not currently serviceable",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.pincode, func(t *testing.T) {
			resp := doGetWithAuth(t, "/api/pincodes/check?pincode="+tt.pincode)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			got := decodeJSON[pincodeResponse](t, resp)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCheckPincode_Unknown(t *testing.T) {
	resp := doGetWithAuth(t, "/api/pincodes/check?pincode=999999")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decodeJSON[pincodeResponse](t, resp)
	if got.IsServiceable {
		t.Error("unknown pincode reported serviceable")
	}
	if got.Message == "" {
		t.Error("expected a message for unknown pincode")
	}
}

func TestCheckPincode_Idempotent(t *testing.T) {
	var first pincodeResponse
	for i := range 3 {
		resp := doGetWithAuth(t, "/api/pincodes/check?pincode=400001")
		got := decodeJSON[pincodeResponse](t, resp)
		resp.Body.Close()
		if i == 0 {
			first = got
			continue
		}
		if got != first {
			t.Fatalf("response %d differs: %+v vs %+v", i, got, first)
		}
	}
}
