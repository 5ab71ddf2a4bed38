package gateway

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedXML means no XML tree could be produced from the callback at
// all. Individual missing fields are never an error; the gateway omits
// fields inconsistently.
var ErrMalformedXML = errors.New("malformed gateway response xml")

// ErrSyntheticRejected means a synthetic/test callback arrived where the
// configuration does not allow one.
var ErrSyntheticRejected = errors.New("synthetic callback not allowed")

// Status classifies a decoded callback.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusError    Status = "error"
)

// threeDSErrorMarker prefixes 3-D-Secure response codes the gateway reports
// for failed authentication.
const threeDSErrorMarker = "error"

// CallbackFields is the normalized field set of a decoded callback. Every
// field defaults to the empty string; Raw keeps every leaf element seen.
type CallbackFields struct {
	Reference   string
	Response    string // gateway's textual result, e.g. approved / declined
	Auth        string
	ErrorCode   string
	ErrorDesc   string
	Folio       string
	Amount      string
	Date        string
	Time        string
	Voucher     string
	CardMask    string
	ThreeDSCode string
	ThreeDSCavv string
	ThreeDSEci  string

	Raw map[string]string
}

// Decoder turns raw gateway callbacks into normalized field sets.
type Decoder struct {
	keyHex         string
	allowSynthetic bool
}

// NewDecoder builds a decoder. allowSynthetic must be false in production;
// the synthetic shape exists only for non-production simulation.
func NewDecoder(keyHex string, allowSynthetic bool) *Decoder {
	return &Decoder{keyHex: keyHex, allowSynthetic: allowSynthetic}
}

// Decode handles the normal encrypted callback shape: decrypt, strip leading
// protocol noise, parse. Returns the fields and the recovered XML document.
func (d *Decoder) Decode(encrypted string) (*CallbackFields, string, error) {
	plaintext, err := Decrypt(encrypted, d.keyHex)
	if err != nil {
		return nil, "", err
	}

	xmlDoc, ok := ExtractXML(plaintext)
	if !ok {
		return nil, "", fmt.Errorf("%w: no xml declaration in decrypted payload", ErrMalformedXML)
	}

	fields, err := parseCallbackXML(xmlDoc)
	if err != nil {
		return nil, "", err
	}
	return fields, xmlDoc, nil
}

// DecodeSynthetic handles the pre-agreed test shape: plain field values with
// no crypto. Only honored when the decoder was built with allowSynthetic.
func (d *Decoder) DecodeSynthetic(values map[string]string) (*CallbackFields, error) {
	if !d.allowSynthetic {
		return nil, ErrSyntheticRejected
	}
	raw := make(map[string]string, len(values))
	for k, v := range values {
		raw[k] = v
	}
	return FieldsFromRaw(raw), nil
}

// Classify applies the status rules in strict priority order: explicit error
// code, then 3-D-Secure error marker, then the textual response, and pending
// only when all three are absent. Later rules never override an earlier one.
func (f *CallbackFields) Classify() Status {
	if strings.TrimSpace(f.ErrorCode) != "" {
		return StatusError
	}
	if code := strings.ToLower(strings.TrimSpace(f.ThreeDSCode)); strings.HasPrefix(code, threeDSErrorMarker) {
		return StatusError
	}
	switch strings.ToLower(strings.TrimSpace(f.Response)) {
	case "":
		return StatusPending
	case "approved":
		return StatusApproved
	default:
		return StatusError
	}
}

// parseCallbackXML walks the document and collects every leaf element into a
// flat map. The schema varies between response codes, so parsing is
// deliberately structure-agnostic.
func parseCallbackXML(doc string) (*CallbackFields, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	raw := make(map[string]string)
	var current string
	seenElement := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !seenElement {
				return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
			}
			// a truncated tail after real elements is tolerated
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			seenElement = true
			current = t.Name.Local
		case xml.CharData:
			if current == "" {
				continue
			}
			text := strings.TrimSpace(string(t))
			if text != "" {
				raw[current] = text
			}
		case xml.EndElement:
			current = ""
		}
	}

	if !seenElement {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedXML)
	}
	return FieldsFromRaw(raw), nil
}

// FieldsFromRaw maps a flat field set into the normalized form. Used for the
// already-parsed payload of the internal webhook as well as after XML
// parsing.
func FieldsFromRaw(raw map[string]string) *CallbackFields {
	get := func(key string) string { return raw[key] }
	return &CallbackFields{
		Reference:   get("reference"),
		Response:    get("payment_response"),
		Auth:        get("auth"),
		ErrorCode:   get("cd_error"),
		ErrorDesc:   get("nb_error"),
		Folio:       get("foliocpagos"),
		Amount:      get("amount"),
		Date:        get("date"),
		Time:        get("time"),
		Voucher:     get("voucher"),
		CardMask:    get("cc_mask"),
		ThreeDSCode: get("r3ds_responseCode"),
		ThreeDSCavv: get("r3ds_cavv"),
		ThreeDSEci:  get("r3ds_eci"),
		Raw:         raw,
	}
}
