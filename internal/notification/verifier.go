package notification

// Verifier holds the per-route configuration so the HTTP layer can verify
// each inbound request with a single call. It is safe for concurrent use.
type Verifier struct {
	creds   Credentials
	variant Variant
	opts    Options
}

func NewVerifier(creds Credentials, variant Variant, opts Options) *Verifier {
	return &Verifier{creds: creds, variant: variant, opts: opts}
}

// Verify authenticates fields. See New.
func (v *Verifier) Verify(fields Fields) (*Notification, error) {
	return New(fields, v.creds, v.variant, v.opts)
}

func (v *Verifier) Variant() Variant { return v.variant }
