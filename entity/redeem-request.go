package entity

import (
	"net/http"

	"qrpass/lib/validate"
)

// RedeemRequest is the redemption boundary input. The user comes from the
// identity claim, never from the body.
type RedeemRequest struct {
	QrPayload string    `json:"qr_payload" validate:"required,min=1"`
	Location  *Location `json:"location,omitempty"`
}

func (r *RedeemRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

// RedeemResult is the redemption boundary output. Policy rejections are
// expected outcomes and travel in the same envelope as acceptances.
type RedeemResult struct {
	Status     ScanResult        `json:"status"`
	Reason     RejectReason      `json:"reason,omitempty"`
	Attendance *AttendanceRecord `json:"attendance,omitempty"`
}
