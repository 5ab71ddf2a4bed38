package gateway

import (
	"errors"
	"testing"
)

func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		name   string
		fields CallbackFields
		want   Status
	}{
		{
			name:   "error code wins over approved response",
			fields: CallbackFields{ErrorCode: "05", ErrorDesc: "Declined", Response: "approved"},
			want:   StatusError,
		},
		{
			name:   "error code alone",
			fields: CallbackFields{ErrorCode: "14"},
			want:   StatusError,
		},
		{
			name:   "3ds error marker wins over approved response",
			fields: CallbackFields{ThreeDSCode: "error-N7", Response: "approved"},
			want:   StatusError,
		},
		{
			name:   "3ds marker case-insensitive",
			fields: CallbackFields{ThreeDSCode: "ERROR-05"},
			want:   StatusError,
		},
		{
			name:   "approved response",
			fields: CallbackFields{Response: "approved", Auth: "123456"},
			want:   StatusApproved,
		},
		{
			name:   "approved is case-insensitive",
			fields: CallbackFields{Response: "Approved"},
			want:   StatusApproved,
		},
		{
			name:   "declined response",
			fields: CallbackFields{Response: "declined"},
			want:   StatusError,
		},
		{
			name:   "unknown response text",
			fields: CallbackFields{Response: "review"},
			want:   StatusError,
		},
		{
			name:   "nothing present yields pending",
			fields: CallbackFields{},
			want:   StatusPending,
		},
		{
			name:   "clean 3ds code does not force error",
			fields: CallbackFields{ThreeDSCode: "05", Response: "approved"},
			want:   StatusApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fields.Classify(); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeEncryptedCallback(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<CENTEROFPAYMENTS>` +
		`<reference>RM42-9F3A1B2C</reference>` +
		`<payment_response>approved</payment_response>` +
		`<auth>123456</auth>` +
		`<foliocpagos>077123456</foliocpagos>` +
		`<amount>115.98</amount>` +
		`<cc_mask>411111XXXXXX1111</cc_mask>` +
		`<date>01/09/2026</date>` +
		`<time>13:45:10</time>` +
		`</CENTEROFPAYMENTS>`

	// the gateway prepends binary garbage before the xml declaration
	encrypted, err := Encrypt("\x02\x9cnoise"+doc, testKeyHex)
	if err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(testKeyHex, false)
	fields, rawXML, err := d.Decode(encrypted)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if rawXML != doc {
		t.Errorf("raw xml mismatch:\ngot:  %s\nwant: %s", rawXML, doc)
	}
	if fields.Reference != "RM42-9F3A1B2C" {
		t.Errorf("Reference = %q", fields.Reference)
	}
	if fields.Response != "approved" || fields.Auth != "123456" {
		t.Errorf("unexpected fields: %+v", fields)
	}
	if fields.Folio != "077123456" || fields.Amount != "115.98" {
		t.Errorf("unexpected fields: %+v", fields)
	}
	if got := fields.Classify(); got != StatusApproved {
		t.Errorf("Classify() = %q, want approved", got)
	}
}

func TestDecodeToleratesMissingFields(t *testing.T) {
	doc := `<?xml version="1.0"?><CENTEROFPAYMENTS><reference>R9</reference></CENTEROFPAYMENTS>`
	encrypted, err := Encrypt(doc, testKeyHex)
	if err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(testKeyHex, false)
	fields, _, err := d.Decode(encrypted)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if fields.Reference != "R9" {
		t.Errorf("Reference = %q", fields.Reference)
	}
	if fields.Response != "" || fields.Auth != "" || fields.ErrorCode != "" {
		t.Errorf("missing fields must default to empty, got %+v", fields)
	}
	if got := fields.Classify(); got != StatusPending {
		t.Errorf("Classify() = %q, want pending", got)
	}
}

func TestDecodeNoXMLInPayload(t *testing.T) {
	encrypted, err := Encrypt("just plain text, nothing resembling a document", testKeyHex)
	if err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(testKeyHex, false)
	_, _, err = d.Decode(encrypted)
	if !errors.Is(err, ErrMalformedXML) {
		t.Errorf("got %v, want ErrMalformedXML", err)
	}
}

func TestDecodeSyntheticGating(t *testing.T) {
	values := map[string]string{
		"reference":        "RM1-TEST",
		"payment_response": "approved",
		"auth":             "999999",
	}

	prod := NewDecoder(testKeyHex, false)
	if _, err := prod.DecodeSynthetic(values); !errors.Is(err, ErrSyntheticRejected) {
		t.Errorf("production decoder accepted synthetic shape: %v", err)
	}

	sandbox := NewDecoder(testKeyHex, true)
	fields, err := sandbox.DecodeSynthetic(values)
	if err != nil {
		t.Fatalf("DecodeSynthetic failed: %v", err)
	}
	if fields.Reference != "RM1-TEST" || fields.Classify() != StatusApproved {
		t.Errorf("unexpected synthetic fields: %+v", fields)
	}
}
