package main

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrDefaultSize = 256

// JoinQR renders the room join URL as a PNG
func JoinQR(joinURL string, size int) ([]byte, error) {
	if joinURL == "" {
		return nil, fmt.Errorf("empty join url")
	}
	png, err := qrcode.Encode(joinURL, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
