package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailsRoundTripNewAccount(t *testing.T) {
	raw, err := EncodeDetails(NewAccountDetails{
		Username:     "cust_1001",
		VolumeGB:     30,
		DurationDays: 90,
		MaxIPs:       2,
	})
	require.NoError(t, err)

	decoded, err := DecodeDetails(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeNewUserCustom, decoded.Type())
	assert.Equal(t, NewAccountDetails{
		Username:     "cust_1001",
		VolumeGB:     30,
		DurationDays: 90,
		MaxIPs:       2,
	}, decoded)
}

func TestDetailsUnlimitedCarriesNoVolume(t *testing.T) {
	raw, err := EncodeDetails(NewAccountDetails{
		Username:     "cust_1002",
		DurationDays: 30,
		Unlimited:    true,
	})
	require.NoError(t, err)

	decoded, err := DecodeDetails(raw)
	require.NoError(t, err)
	acct, ok := decoded.(NewAccountDetails)
	require.True(t, ok)
	assert.True(t, acct.Unlimited)
	assert.Zero(t, acct.VolumeGB)
	assert.Equal(t, TypeNewUserUnlimited, acct.Type())
}

func TestDetailsWalletChargeIsBare(t *testing.T) {
	raw, err := EncodeDetails(WalletChargeDetails{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"invoice_type":"WALLET_CHARGE"}`, raw)

	decoded, err := DecodeDetails(raw)
	require.NoError(t, err)
	assert.Equal(t, WalletChargeDetails{}, decoded)
}

func TestDetailsRenewalKeepsZeroTerms(t *testing.T) {
	// Zero volume/duration are legal at decode time; the dispatcher fills
	// them from the subscription note.
	decoded, err := DecodeDetails(`{"invoice_type":"RENEWAL","username":"cust_1003"}`)
	require.NoError(t, err)
	assert.Equal(t, RenewalDetails{Username: "cust_1003"}, decoded)
}

func TestDecodeDetailsMissingFields(t *testing.T) {
	_, err := DecodeDetails(`{"invoice_type":"NEW_USER_CUSTOM","username":"u"}`)
	var incomplete *IncompleteDetailsError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, TypeNewUserCustom, incomplete.InvoiceType)
	assert.ElementsMatch(t, []string{"volume", "duration"}, incomplete.Missing)

	_, err = DecodeDetails(`{"invoice_type":"DATA_TOP_UP","volume":10}`)
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"username"}, incomplete.Missing)
}

func TestDecodeDetailsUnknownTypeFallsBackToLegacy(t *testing.T) {
	decoded, err := DecodeDetails(`{"invoice_type":"GIFT_CARD","username":"cust_1004","volume":5}`)
	require.NoError(t, err)

	legacy, ok := decoded.(LegacyDetails)
	require.True(t, ok)
	assert.Equal(t, "GIFT_CARD", legacy.RawType)
	assert.Equal(t, "cust_1004", legacy.Username)
	assert.Equal(t, TypeManualInvoice, legacy.Type())

	// Re-encoding keeps the raw type so nothing is silently rewritten.
	raw, err := EncodeDetails(legacy)
	require.NoError(t, err)
	assert.Contains(t, raw, `"invoice_type":"GIFT_CARD"`)
}

func TestDecodeDetailsMalformedJSON(t *testing.T) {
	_, err := DecodeDetails(`{"invoice_type":`)
	assert.Error(t, err)
}
