package ledger

import (
	"context"
	"errors"
	"fmt"

	"tripvault/db/db"
)

type PaymentSettingsPatch struct {
	UPIID        *string
	PhoneNumber  *string
	BankName     *string
	IsActive     *bool
	QRCode       *Upload
	RemoveQRCode bool
}

// GetPaymentSettings returns the caller's own settings, or active defaults
// when none were saved yet.
func (l *Ledger) GetPaymentSettings(ctx context.Context, caller string) (*db.PaymentSettings, error) {
	settings, err := l.users.GetPaymentSettings(ctx, caller)
	if errors.Is(err, db.ErrNotFound) {
		return &db.PaymentSettings{UserID: caller, IsActive: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payment settings: %w", err)
	}
	return settings, nil
}

// UpdatePaymentSettings merges patch into the caller's settings. A new QR
// code image replaces the stored one.
func (l *Ledger) UpdatePaymentSettings(ctx context.Context, caller string, patch PaymentSettingsPatch) (*db.PaymentSettings, error) {
	current, err := l.GetPaymentSettings(ctx, caller)
	if err != nil {
		return nil, err
	}
	next := *current

	if patch.UPIID != nil {
		if next.UPIID, err = verifyUPI(*patch.UPIID); err != nil {
			return nil, err
		}
	}
	if patch.PhoneNumber != nil {
		if next.PhoneNumber, err = verifyPhone(*patch.PhoneNumber); err != nil {
			return nil, err
		}
	}
	if patch.BankName != nil {
		if next.BankName, err = verifyText("bankName", *patch.BankName, false, maxBankNameLength); err != nil {
			return nil, err
		}
	}
	if patch.IsActive != nil {
		next.IsActive = *patch.IsActive
	}
	if patch.QRCode != nil {
		ref, err := l.saveUpload(ctx, "qrCode", qrCodeFolder, patch.QRCode)
		if err != nil {
			return nil, fmt.Errorf("save qr code: %w", err)
		}
		next.QRCodeRef = ref
	} else if patch.RemoveQRCode {
		next.QRCodeRef = ""
	}
	next.UpdatedAt = l.now().UTC()

	if err := l.users.UpsertPaymentSettings(ctx, &next); err != nil {
		if next.QRCodeRef != current.QRCodeRef {
			l.removeFile(ctx, next.QRCodeRef)
		}
		return nil, fmt.Errorf("save payment settings: %w", err)
	}
	if next.QRCodeRef != current.QRCodeRef {
		l.removeFile(ctx, current.QRCodeRef)
	}
	return &next, nil
}

// GetUserPaymentSettings returns another user's settings if they are active.
func (l *Ledger) GetUserPaymentSettings(ctx context.Context, userID string) (*db.PaymentSettings, error) {
	settings, err := l.users.GetPaymentSettings(ctx, userID)
	if err != nil {
		return nil, storeErr(err, resourcePayment, userID)
	}
	if !settings.IsActive {
		return nil, &NotFoundError{Resource: resourcePayment, ID: userID}
	}
	return settings, nil
}
