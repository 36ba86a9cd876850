package billing

import (
	"encoding/json"
	"fmt"
)

// InvoiceType discriminates the fulfillment action an invoice pays for.
type InvoiceType string

const (
	TypeWalletCharge     InvoiceType = "WALLET_CHARGE"
	TypeManualInvoice    InvoiceType = "MANUAL_INVOICE"
	TypeDataTopUp        InvoiceType = "DATA_TOP_UP"
	TypeNewUserCustom    InvoiceType = "NEW_USER_CUSTOM"
	TypeNewUserUnlimited InvoiceType = "NEW_USER_UNLIMITED"
	TypeRenewal          InvoiceType = "RENEWAL"
)

// Details is the decoded plan payload of an invoice. Each invoice type has
// exactly one variant carrying the fields that type requires, so a decoded
// value is known-complete (renewal fields may still be filled from the
// subscription note at dispatch time).
type Details interface {
	Type() InvoiceType
}

// WalletChargeDetails credits the invoice price to the user's wallet.
type WalletChargeDetails struct{}

func (WalletChargeDetails) Type() InvoiceType { return TypeWalletCharge }

// ManualDetails records a subscription sold outside the panel flow; only
// local metadata is written.
type ManualDetails struct {
	Username     string
	VolumeGB     int
	DurationDays int
}

func (ManualDetails) Type() InvoiceType { return TypeManualInvoice }

// TopUpDetails adds data volume to an existing panel account.
type TopUpDetails struct {
	Username string
	VolumeGB int
}

func (TopUpDetails) Type() InvoiceType { return TypeDataTopUp }

// NewAccountDetails provisions a panel account. Unlimited accounts carry no
// volume and are priced by flat plan, not the tier engine.
type NewAccountDetails struct {
	Username     string
	VolumeGB     int
	DurationDays int
	MaxIPs       int
	Unlimited    bool
}

func (d NewAccountDetails) Type() InvoiceType {
	if d.Unlimited {
		return TypeNewUserUnlimited
	}
	return TypeNewUserCustom
}

// RenewalDetails resets traffic and extends expiry of an existing account.
// Zero VolumeGB/DurationDays fall back to the stored subscription note.
type RenewalDetails struct {
	Username     string
	VolumeGB     int
	DurationDays int
}

func (RenewalDetails) Type() InvoiceType { return TypeRenewal }

// LegacyDetails preserves payloads with an unrecognized invoice_type. They
// are handled like manual invoices, with a warning logged, so unknown types
// never silently move money or touch the panel.
type LegacyDetails struct {
	RawType      string
	Username     string
	VolumeGB     int
	DurationDays int
}

func (LegacyDetails) Type() InvoiceType { return TypeManualInvoice }

// detailsEnvelope is the stored JSON shape of plan details.
type detailsEnvelope struct {
	InvoiceType  string `json:"invoice_type"`
	Username     string `json:"username,omitempty"`
	VolumeGB     int    `json:"volume,omitempty"`
	DurationDays int    `json:"duration,omitempty"`
	MaxIPs       int    `json:"max_ips,omitempty"`
}

// EncodeDetails serializes a variant for persistence on the invoice row.
func EncodeDetails(d Details) (string, error) {
	env := detailsEnvelope{InvoiceType: string(d.Type())}
	switch t := d.(type) {
	case WalletChargeDetails:
	case ManualDetails:
		env.Username = t.Username
		env.VolumeGB = t.VolumeGB
		env.DurationDays = t.DurationDays
	case TopUpDetails:
		env.Username = t.Username
		env.VolumeGB = t.VolumeGB
	case NewAccountDetails:
		env.Username = t.Username
		env.VolumeGB = t.VolumeGB
		env.DurationDays = t.DurationDays
		env.MaxIPs = t.MaxIPs
	case RenewalDetails:
		env.Username = t.Username
		env.VolumeGB = t.VolumeGB
		env.DurationDays = t.DurationDays
	case LegacyDetails:
		env.InvoiceType = t.RawType
		env.Username = t.Username
		env.VolumeGB = t.VolumeGB
		env.DurationDays = t.DurationDays
	default:
		return "", fmt.Errorf("unknown details variant %T", d)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeDetails parses stored plan details and validates the fields the
// declared type requires. Unknown types decode to LegacyDetails.
func DecodeDetails(raw string) (Details, error) {
	var env detailsEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("malformed plan details: %w", err)
	}

	switch InvoiceType(env.InvoiceType) {
	case TypeWalletCharge:
		return WalletChargeDetails{}, nil

	case TypeManualInvoice:
		if env.Username == "" {
			return nil, incompleteDetails(TypeManualInvoice, "username")
		}
		return ManualDetails{
			Username:     env.Username,
			VolumeGB:     env.VolumeGB,
			DurationDays: env.DurationDays,
		}, nil

	case TypeDataTopUp:
		var missing []string
		if env.Username == "" {
			missing = append(missing, "username")
		}
		if env.VolumeGB <= 0 {
			missing = append(missing, "volume")
		}
		if len(missing) > 0 {
			return nil, incompleteDetails(TypeDataTopUp, missing...)
		}
		return TopUpDetails{Username: env.Username, VolumeGB: env.VolumeGB}, nil

	case TypeNewUserCustom:
		var missing []string
		if env.Username == "" {
			missing = append(missing, "username")
		}
		if env.VolumeGB <= 0 {
			missing = append(missing, "volume")
		}
		if env.DurationDays <= 0 {
			missing = append(missing, "duration")
		}
		if len(missing) > 0 {
			return nil, incompleteDetails(TypeNewUserCustom, missing...)
		}
		return NewAccountDetails{
			Username:     env.Username,
			VolumeGB:     env.VolumeGB,
			DurationDays: env.DurationDays,
			MaxIPs:       env.MaxIPs,
		}, nil

	case TypeNewUserUnlimited:
		var missing []string
		if env.Username == "" {
			missing = append(missing, "username")
		}
		if env.DurationDays <= 0 {
			missing = append(missing, "duration")
		}
		if len(missing) > 0 {
			return nil, incompleteDetails(TypeNewUserUnlimited, missing...)
		}
		return NewAccountDetails{
			Username:     env.Username,
			DurationDays: env.DurationDays,
			MaxIPs:       env.MaxIPs,
			Unlimited:    true,
		}, nil

	case TypeRenewal:
		if env.Username == "" {
			return nil, incompleteDetails(TypeRenewal, "username")
		}
		return RenewalDetails{
			Username:     env.Username,
			VolumeGB:     env.VolumeGB,
			DurationDays: env.DurationDays,
		}, nil

	default:
		return LegacyDetails{
			RawType:      env.InvoiceType,
			Username:     env.Username,
			VolumeGB:     env.VolumeGB,
			DurationDays: env.DurationDays,
		}, nil
	}
}
