// Package notification authenticates IPG Connect callbacks and exposes a
// status-normalized, read-only view of the verified fields.
package notification

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"ipgconnect/internal/digest"
)

// ErrAuthentication is returned when the supplied digest is missing or does
// not match the one recomputed from the callback fields.
var ErrAuthentication = errors.New("gateway callback could not be verified")

// Inbound field names.
const (
	FieldApprovalCode     = "approval_code"
	FieldChargeTotal      = "chargetotal"
	FieldCurrency         = "currency"
	FieldTxnDateTime      = "txndatetime"
	FieldStatus           = "status"
	FieldOrderID          = "oid"
	FieldFailReason       = "fail_reason"
	FieldHostedDataID     = "hosteddataid"
	FieldResponseHash     = "response_hash"
	FieldNotificationHash = "notification_hash"
	FieldHashAlgorithm    = "hash_algorithm"
	FieldCardNumber       = "cardnumber"
	FieldExpMonth         = "expmonth"
	FieldExpYear          = "expyear"
	FieldThreeDSecure     = "response_code_3dsecure"
)

// Fields is the flat name/value mapping the gateway posted.
type Fields map[string]string

// Credentials identify the merchant store. SharedSecret must never be logged.
type Credentials struct {
	StoreID      string
	SharedSecret string
}

// Variant selects the digest ordering and the field carrying the supplied digest.
type Variant int

const (
	// VariantNotification is the server-to-server callback (notification_hash).
	VariantNotification Variant = iota
	// VariantResponse is the browser redirect after the hosted payment page (response_hash).
	VariantResponse
)

func (v Variant) String() string {
	if v == VariantResponse {
		return "response"
	}
	return "notification"
}

// Features toggles optional field groups that older integrations did not send.
type Features uint8

const (
	// FeatureCardDetails exposes card number, expiry and 3-D Secure fields.
	FeatureCardDetails Features = 1 << iota
)

// Options carries the configured defaults for verification.
type Options struct {
	// DefaultAlgorithm applies when the callback has no hash_algorithm.
	// The zero value means digest.Default.
	DefaultAlgorithm digest.Algorithm
	Features         Features
}

// Notification is a callback whose digest has been verified. The only way to
// obtain one is New (or Verifier.Verify), which checks the digest first.
type Notification struct {
	variant   Variant
	features  Features
	algorithm digest.Algorithm
	fields    Fields
}

// New verifies fields against creds using the ordering for variant and
// returns the verified view. It fails with ErrUnsupportedAlgorithm or
// ErrAuthentication; no partial result is ever returned.
func New(fields Fields, creds Credentials, variant Variant, opts Options) (*Notification, error) {
	alg, err := resolveAlgorithm(fields[FieldHashAlgorithm], opts.DefaultAlgorithm)
	if err != nil {
		return nil, err
	}

	expected, err := digest.Compute(material(fields, creds, variant), alg)
	if err != nil {
		return nil, err
	}

	supplied := fields[suppliedField(variant)]
	if supplied == "" || !digest.Equal(expected, supplied) {
		return nil, ErrAuthentication
	}

	return &Notification{
		variant:   variant,
		features:  opts.Features,
		algorithm: alg,
		fields:    maps.Clone(fields),
	}, nil
}

func resolveAlgorithm(name string, fallback digest.Algorithm) (digest.Algorithm, error) {
	if name == "" {
		if fallback == "" {
			return digest.Default, nil
		}
		name = fallback.String()
	}
	alg, err := digest.ParseAlgorithm(name)
	if err != nil {
		return "", fmt.Errorf("resolve hash algorithm: %w", err)
	}
	return alg, nil
}

// material concatenates the digest input without delimiters. The two
// orderings differ on the gateway side and must stay exactly as they are.
func material(f Fields, creds Credentials, variant Variant) string {
	var parts []string
	switch variant {
	case VariantResponse:
		parts = []string{
			creds.SharedSecret,
			f[FieldApprovalCode],
			f[FieldChargeTotal],
			f[FieldCurrency],
			f[FieldTxnDateTime],
			creds.StoreID,
		}
	default:
		parts = []string{
			f[FieldChargeTotal],
			creds.SharedSecret,
			f[FieldCurrency],
			f[FieldTxnDateTime],
			creds.StoreID,
			f[FieldApprovalCode],
		}
	}
	return strings.Join(parts, "")
}

func suppliedField(variant Variant) string {
	if variant == VariantResponse {
		return FieldResponseHash
	}
	return FieldNotificationHash
}

func (n *Notification) lookup(key string) (string, bool) {
	v, ok := n.fields[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Variant reports which flow the callback was verified as.
func (n *Notification) Variant() Variant { return n.variant }

// Algorithm is the digest algorithm the callback was verified with.
func (n *Notification) Algorithm() digest.Algorithm { return n.algorithm }

// SuppliedDigest is the digest the gateway sent, already proven equal to the
// recomputed one.
func (n *Notification) SuppliedDigest() string {
	return n.fields[suppliedField(n.variant)]
}

// Fields returns a copy of every verified field.
func (n *Notification) Fields() Fields { return maps.Clone(n.fields) }

// TransactionReference is the merchant order id (oid).
func (n *Notification) TransactionReference() (string, bool) {
	return n.lookup(FieldOrderID)
}

// TransactionID is an alias of TransactionReference kept for the redirect flow.
func (n *Notification) TransactionID() (string, bool) {
	return n.TransactionReference()
}

// GatewayStatus is the raw status string as sent by the gateway.
func (n *Notification) GatewayStatus() (string, bool) {
	return n.lookup(FieldStatus)
}

// Status is the canonical status. A missing status is StatusFailed.
func (n *Notification) Status() Status {
	return MapStatus(n.fields[FieldStatus])
}

// Successful reports whether the gateway approved the transaction.
func (n *Notification) Successful() bool {
	return n.Status() == StatusCompleted
}

// Message is fail_reason when set, else the raw status.
func (n *Notification) Message() (string, bool) {
	if reason, ok := n.lookup(FieldFailReason); ok {
		return reason, true
	}
	return n.GatewayStatus()
}

// Amount is chargetotal. Only the notification flow exposes it.
func (n *Notification) Amount() (string, bool) {
	if n.variant != VariantNotification {
		return "", false
	}
	return n.lookup(FieldChargeTotal)
}

func (n *Notification) Currency() (string, bool) {
	return n.lookup(FieldCurrency)
}

func (n *Notification) ApprovalCode() (string, bool) {
	return n.lookup(FieldApprovalCode)
}

func (n *Notification) TransactionTime() (string, bool) {
	return n.lookup(FieldTxnDateTime)
}

// StoredDetailsToken is the hosted data id of stored card details.
func (n *Notification) StoredDetailsToken() (string, bool) {
	return n.lookup(FieldHostedDataID)
}

// LastFourDigits returns the last four characters of cardnumber when they
// are all ASCII digits.
func (n *Notification) LastFourDigits() (string, bool) {
	number, ok := n.cardField(FieldCardNumber)
	if !ok || len(number) < 4 {
		return "", false
	}
	tail := number[len(number)-4:]
	if !isDigits(tail) {
		return "", false
	}
	return tail, true
}

func (n *Notification) ExpiryMonth() (string, bool) {
	month, ok := n.cardField(FieldExpMonth)
	if !ok {
		return "", false
	}
	return padLeft(month, 2), true
}

// ExpiryYear pads like ExpiryMonth, so a four digit year comes back as is and
// a one digit year gains a leading zero. Consumers depend on this shape.
func (n *Notification) ExpiryYear() (string, bool) {
	year, ok := n.cardField(FieldExpYear)
	if !ok {
		return "", false
	}
	return padLeft(year, 2), true
}

// ThreeDSecureStatus is the raw 3-D Secure response code, unmapped.
func (n *Notification) ThreeDSecureStatus() (int, bool) {
	raw, ok := n.cardField(FieldThreeDSecure)
	if !ok {
		return 0, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return code, true
}

func (n *Notification) cardField(key string) (string, bool) {
	if n.features&FeatureCardDetails == 0 {
		return "", false
	}
	return n.lookup(key)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
