package engines

import qrcode "github.com/skip2/go-qrcode"

// QREncoder renders values into PNG QR codes.
type QREncoder struct{}

func NewQREncoder() *QREncoder {
	return &QREncoder{}
}

func (QREncoder) Encode(value string, size int) ([]byte, error) {
	return qrcode.Encode(value, qrcode.Medium, size)
}
