package domain

// Address fields are all optional; the zero value means "not provided".
type Address struct {
	Line1   string `json:"line1,omitempty"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

type Account struct {
	ID              int64    `json:"id"`
	Email           string   `json:"email"`
	Username        string   `json:"username"`
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
	BillingAddress  *Address `json:"billingAddress,omitempty"`
}

type Registration struct {
	Email           string   `json:"email"`
	Username        string   `json:"username"`
	Password        string   `json:"password"`
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
	BillingAddress  *Address `json:"billingAddress,omitempty"`
}

func (r Registration) Validate() error {
	if r.Email == "" || r.Username == "" || r.Password == "" {
		return NewValidationFailure("email, username and password are required")
	}
	return nil
}

type AccountUpdate struct {
	Username        string   `json:"username"`
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
	BillingAddress  *Address `json:"billingAddress,omitempty"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
