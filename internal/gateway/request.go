package gateway

import (
	"bytes"
	"encoding/xml"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/doarsal/readymarket-backend-sub002/internal/config"
)

// Card holds the card fields forwarded verbatim to the gateway.
type Card struct {
	Name     string
	Number   string
	ExpMonth string
	ExpYear  string
	CVV      string
}

// Billing holds the billing fields forwarded verbatim to the gateway.
type Billing struct {
	Name       string
	Email      string
	Phone      string
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// RequestParams carries everything needed to compose one transaction request.
type RequestParams struct {
	Reference string
	Amount    float64
	Currency  string
	Card      Card
	Billing   Billing
	BrowserIP string
}

// Builder composes gateway transaction documents from merchant configuration.
type Builder struct {
	cfg config.GatewayConfig
}

func NewBuilder(cfg config.GatewayConfig) *Builder {
	return &Builder{cfg: cfg}
}

// FormatAmount renders an amount with exactly two decimal digits and no
// thousands separator, as the gateway requires.
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// BuildTransactionXML produces the fixed-schema transaction document. The
// gateway's parser is whitespace-sensitive, so the document carries no
// indentation or newlines whatsoever.
func (b *Builder) BuildTransactionXML(p RequestParams) string {
	currency := p.Currency
	if currency == "" {
		currency = b.cfg.Currency
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString("<TRANSACTION3DS>")
	sb.WriteString("<business>")
	writeTag(&sb, "bs_idCompany", b.cfg.CompanyID)
	writeTag(&sb, "bs_idBranch", b.cfg.BranchID)
	writeTag(&sb, "bs_country", b.cfg.Country)
	writeTag(&sb, "bs_user", b.cfg.User)
	writeTag(&sb, "bs_pwd", b.cfg.Password)
	sb.WriteString("</business>")
	sb.WriteString("<transaction>")
	writeTag(&sb, "tx_merchant", b.cfg.Merchant)
	writeTag(&sb, "tx_reference", p.Reference)
	writeTag(&sb, "tx_amount", FormatAmount(p.Amount))
	writeTag(&sb, "tx_currency", currency)
	sb.WriteString("<creditcard>")
	writeTag(&sb, "cc_name", p.Card.Name)
	writeTag(&sb, "cc_number", p.Card.Number)
	writeTag(&sb, "cc_expMonth", p.Card.ExpMonth)
	writeTag(&sb, "cc_expYear", p.Card.ExpYear)
	writeTag(&sb, "cc_cvv", p.Card.CVV)
	sb.WriteString("</creditcard>")
	sb.WriteString("<billing>")
	writeTag(&sb, "bl_name", p.Billing.Name)
	writeTag(&sb, "bl_email", p.Billing.Email)
	writeTag(&sb, "bl_phone", p.Billing.Phone)
	writeTag(&sb, "bl_street", p.Billing.Street)
	writeTag(&sb, "bl_city", p.Billing.City)
	writeTag(&sb, "bl_state", p.Billing.State)
	writeTag(&sb, "bl_postalCode", p.Billing.PostalCode)
	writeTag(&sb, "bl_country", p.Billing.Country)
	sb.WriteString("</billing>")
	writeTag(&sb, "tx_urlResponse", b.cfg.ResponseURL)
	writeTag(&sb, "tx_cobro", "1")
	writeTag(&sb, "tx_browserIP", p.BrowserIP)
	sb.WriteString("</transaction>")
	sb.WriteString("</TRANSACTION3DS>")
	return sb.String()
}

// WrapPayload frames an encrypted payload the way the gateway expects it on
// the wire: <pgs><data0>ID</data0><data>BASE64</data></pgs>.
func WrapPayload(payloadID, encrypted string) string {
	var sb strings.Builder
	sb.WriteString("<pgs>")
	writeTag(&sb, "data0", payloadID)
	writeTag(&sb, "data", encrypted)
	sb.WriteString("</pgs>")
	return sb.String()
}

// BuildPaymentForm wraps the framed payload into a minimal auto-submitting
// HTML form addressed at the gateway's POST endpoint.
func BuildPaymentForm(gatewayURL, framedPayload string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	sb.WriteString(`<form id="gateway-form" method="POST" action="`)
	sb.WriteString(html.EscapeString(gatewayURL))
	sb.WriteString(`">`)
	sb.WriteString(`<input type="hidden" name="xml" value="`)
	sb.WriteString(html.EscapeString(framedPayload))
	sb.WriteString(`"/>`)
	sb.WriteString("</form>")
	sb.WriteString(`<script>document.getElementById("gateway-form").submit();</script>`)
	sb.WriteString("</body></html>")
	return sb.String()
}

func writeTag(sb *strings.Builder, tag, value string) {
	sb.WriteString("<")
	sb.WriteString(tag)
	sb.WriteString(">")
	sb.WriteString(escapeXML(value))
	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteString(">")
}

func escapeXML(value string) string {
	var buf bytes.Buffer
	// error is always nil for a bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(value))
	return buf.String()
}
