package amadeus

import (
	"encoding/json"
	"fmt"
)

const defaultErrorMessage = "Unable to process your booking request. Please verify your information and try again."

var errorMessages = map[int]string{
	141:   "A system error occurred. Please try again in a few moments.",
	477:   "Invalid data format. Please check that all fields are correctly formatted (dates: YYYY-MM-DD, airport codes: 3-letter IATA codes).",
	1304:  "The provided credit card is not accepted. Please try a different payment method.",
	2668:  "Invalid parameter combination. Please adjust your search criteria.",
	2781:  "Invalid data length. One or more fields exceed the maximum allowed length.",
	4926:  "Invalid data received. Please verify all required fields are filled correctly.",
	9112:  "Ticketing error occurred. Please contact support for assistance.",
	32171: "Missing required information. Please ensure all mandatory fields are provided.",
	34107: "The selected fare is not applicable. Please search for new flights.",
	34651: "Flight is no longer available for booking. Flight offers expire within minutes. Please search for flights again and complete the entire booking process quickly.",
	34733: "Payment processing failed. Please try again or use a different payment method.",
	36870: "Booking failed. The reservation could not be completed. Please search for flights again.",
	37200: "Price discrepancy detected. The flight price has changed. Please review the updated pricing.",
	38034: "One or more requested services are not available. Please review your selections.",
}

type apiErrors struct {
	Errors []struct {
		Code   int    `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Source struct {
			Parameter string `json:"parameter"`
			Example   string `json:"example"`
		} `json:"source"`
	} `json:"errors"`
}

func parseClientError(status int, body []byte) *ClientError {
	var parsed apiErrors
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &ClientError{Status: status, Message: defaultErrorMessage}
	}
	if len(parsed.Errors) == 0 {
		return &ClientError{Status: status, Message: fmt.Sprintf("Booking service error: %s", body)}
	}

	first := parsed.Errors[0]
	if msg, ok := errorMessages[first.Code]; ok {
		return &ClientError{Status: status, Code: first.Code, Message: msg}
	}

	title := first.Title
	if title == "" {
		title = "Unknown error"
	}
	msg := title
	if first.Detail != "" {
		msg = title + ": " + first.Detail
	}
	if p := first.Source.Parameter; p != "" {
		if first.Source.Example != "" {
			msg += fmt.Sprintf(" (Parameter: %s, Example: %s)", p, first.Source.Example)
		} else {
			msg += fmt.Sprintf(" (Parameter: %s)", p)
		}
	}
	if msg == "Unknown error" {
		msg = defaultErrorMessage
	}
	return &ClientError{Status: status, Code: first.Code, Message: msg}
}
