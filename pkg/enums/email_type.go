package enums

// EmailType labels the kind of transactional email logged against an order.
type EmailType string

const (
	EmailTypeOrderConfirmation EmailType = "order_confirmation"
)

// String implements fmt.Stringer.
func (e EmailType) String() string {
	return string(e)
}
