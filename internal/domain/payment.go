package domain

// Provider transaction status codes.
const (
	PaymentStatusInvalid   = 0
	PaymentStatusCompleted = 1
	PaymentStatusFailed    = 2
	PaymentStatusReversed  = 3
)

// PaymentDetailsNotFound is the provider error code for a tracking id with no payment attempt yet.
const PaymentDetailsNotFound = "payment_details_not_found"

type ProviderError struct {
	ErrorType string `json:"error_type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// TransactionStatus is what the payment provider reports for one order tracking id.
type TransactionStatus struct {
	StatusCode               int            `json:"status_code"`
	PaymentStatusDescription string         `json:"payment_status_description"`
	Description              string         `json:"description"`
	PaymentMethod            string         `json:"payment_method"`
	Amount                   float64        `json:"amount"`
	ConfirmationCode         string         `json:"confirmation_code"`
	MerchantReference        string         `json:"merchant_reference"`
	Currency                 string         `json:"currency"`
	CreatedDate              string         `json:"created_date"`
	Error                    *ProviderError `json:"error,omitempty"`
}

type BillingAddress struct {
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number"`
	CountryCode  string `json:"country_code"`
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name"`
	LastName     string `json:"last_name"`
	Line1        string `json:"line_1"`
	Line2        string `json:"line_2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	ZipCode      string `json:"zip_code"`
}

type PaymentOrder struct {
	MerchantReference string
	Amount            float64
	Currency          string
	Description       string
	CallbackURL       string
	NotificationID    string
	BillingAddress    BillingAddress
}

type PaymentOrderResult struct {
	OrderTrackingID   string `json:"order_tracking_id"`
	MerchantReference string `json:"merchant_reference"`
	RedirectURL       string `json:"redirect_url"`
	Status            string `json:"status"`
}
