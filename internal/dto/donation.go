package dto

// SubmitReceiptRequest attaches a payment receipt reference to a donation.
type SubmitReceiptRequest struct {
	ReceiptRef string `json:"receipt_ref" validate:"required,max=512"`
}

// DonationListQuery pages through a participant's donations.
type DonationListQuery struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"page_size" validate:"omitempty,min=1,max=100"`
}
